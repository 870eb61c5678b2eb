package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemfalcon/chembot/core"
)

func orderSession(request core.RequestType) *core.Session {
	s := core.NewSession("sess-1", "token-abc")
	s.Request = request
	s.ProductID = "65f000000000000000000001"
	s.ProductName = "Sulphuric Acid"
	s.Details = map[string]string{
		core.FieldUnit:          "KG",
		core.FieldQuantity:      "500",
		core.FieldPricePerUnit:  "25",
		core.FieldExpectedPrice: "12500",
		core.FieldPhone:         "+8801712345678",
		core.FieldIncoterm:      "Ex Factory",
		core.FieldModeOfPayment: "TT",
		core.FieldPackagingPref: "Drum",
		core.FieldDeliveryDate:  "2027-01-15",
	}
	s.Address = map[string]any{
		"_id":         "65f000000000000000000002",
		"addressLine": "12 Industrial Road",
		"city":        "Dhaka",
		"note":        "",
	}
	s.IndustryID = "65f000000000000000000003"
	s.IndustryName = "Textiles"
	return s
}

func TestPlacePPR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order/createRequirement", r.URL.Path)
		assert.Equal(t, "token-abc", r.Header.Get("x-auth-token-user"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "65f000000000000000000001", payload["product"])
		assert.Equal(t, "65f000000000000000000002", payload["address"])
		assert.Equal(t, "500", payload["quantity"])
		assert.Equal(t, "KG", payload["quantityType"])
		assert.Equal(t, "2027-01-15", payload["endDate"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   false,
			"message": "Requirement created successfully",
			"results": map[string]any{
				"requirement": map[string]any{"_id": "req-1"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestPPR))

	require.True(t, result.Success(), "message: %s", result.Message)
	assert.Equal(t, "req-1", result.RequirementID)
}

func TestPlacePPRMissingAddress(t *testing.T) {
	client := NewClient()
	s := orderSession(core.RequestPPR)
	s.Address = nil

	result := client.Place(context.Background(), s)
	require.False(t, result.Success())
	assert.Equal(t, core.ErrCodeAddress, result.ErrorType)
}

func TestPlacePPRMissingField(t *testing.T) {
	client := NewClient()
	s := orderSession(core.RequestPPR)
	delete(s.Details, core.FieldDeliveryDate)

	result := client.Place(context.Background(), s)
	require.False(t, result.Success())
	assert.Equal(t, core.ErrCodeData, result.ErrorType)
	assert.Contains(t, result.Message, "delivery_date")
}

func TestPlaceSampleOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order/placeOrder", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		form := r.MultipartForm.Value
		assert.Equal(t, []string{"65f000000000000000000001"}, form["product"])
		assert.Equal(t, []string{"Sample"}, form["type"])
		assert.Equal(t, []string{"TRUE"}, form["isSampleOrder"])
		assert.Equal(t, []string{"12500"}, form["expectedAmount"])
		assert.Equal(t, []string{"12 Industrial Road"}, form["address[addressLine]"])
		assert.Equal(t, []string{"+8801712345678"}, form["shippingContactNumber"])

		// The record id and empty values never reach the form.
		assert.NotContains(t, form, "address[_id]")
		assert.NotContains(t, form, "address[note]")

		json.NewEncoder(w).Encode(map[string]any{
			"error":   false,
			"message": "Order placed successfully!",
			"results": map[string]any{
				"order": map[string]any{"_id": "ord-9"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestSample))

	require.True(t, result.Success(), "message: %s", result.Message)
	assert.Equal(t, "ord-9", result.OrderID)
}

func TestPlaceOrderOmitsSampleFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form := r.MultipartForm.Value
		assert.Equal(t, []string{"Order"}, form["type"])
		assert.NotContains(t, form, "isSampleOrder")

		json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"results": map[string]any{
				"order": map[string]any{"_id": "ord-10"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestOrder))
	require.True(t, result.Success())
}

func TestPlaceOrderPartialContentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"results": map[string]any{
				"order": map[string]any{"_id": "ord-11"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestQuote))
	require.True(t, result.Success())
	assert.Equal(t, "ord-11", result.OrderID)
}

func TestPlaceOrderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   true,
			"message": "insufficient stock",
		})
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestOrder))

	require.False(t, result.Success())
	assert.Equal(t, core.ErrCodeAPI, result.ErrorType)
	assert.Equal(t, "insufficient stock", result.Message)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
}

func TestPlaceOrderParsingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>boom</html>"))
	}))
	defer srv.Close()

	client := NewClient(func(o *Options) { o.BaseURL = srv.URL })
	result := client.Place(context.Background(), orderSession(core.RequestOrder))

	require.False(t, result.Success())
	assert.Equal(t, core.ErrCodeParsing, result.ErrorType)
}

func TestPlaceRequiresAuth(t *testing.T) {
	client := NewClient()
	s := orderSession(core.RequestOrder)
	s.UserAuth = ""

	result := client.Place(context.Background(), s)
	require.False(t, result.Success())
	assert.Equal(t, core.ErrCodeAuth, result.ErrorType)
}

func TestResolveIndustryIDByName(t *testing.T) {
	client := NewClient()
	s := orderSession(core.RequestOrder)
	s.IndustryID = "Textiles" // model stored the name instead of the id
	s.CachedIndustries = []core.Industry{
		{ID: "65f000000000000000000003", Name: "Textiles"},
		{ID: "65f000000000000000000004", Name: "Pharma"},
	}

	assert.Equal(t, "65f000000000000000000003", client.resolveIndustryID(s))
}

func TestResolveIndustryIDWellFormed(t *testing.T) {
	client := NewClient()
	s := orderSession(core.RequestOrder)

	assert.Equal(t, "65f000000000000000000003", client.resolveIndustryID(s))
}
