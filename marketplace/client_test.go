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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(func(o *Options) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})
}

func TestSearchInventory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/inventory/getBotSearchResult", r.URL.Path)
		assert.Equal(t, "Buyer", r.Header.Get("x-user-type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sulphuric acid", body["query"])

		json.NewEncoder(w).Encode(map[string]any{
			"error":   false,
			"message": "ok",
			"results": map[string]any{
				"products": []map[string]any{
					{
						"_id":         "65f000000000000000000001",
						"name_en":     "Sulphuric Acid",
						"minQuantity": 1000,
						"maxQuantity": 5000,
						"sellers":     []any{"should be stripped"},
						"rawResult":   "should be stripped",
					},
				},
			},
		})
	})

	products, err := client.SearchInventory(context.Background(), "sulphuric acid")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Sulphuric Acid", products[0]["name_en"])
	assert.NotContains(t, products[0], "sellers")
	assert.NotContains(t, products[0], "rawResult")
}

func TestSearchInventoryConnectionError(t *testing.T) {
	client := NewClient(func(o *Options) {
		o.BaseURL = "http://127.0.0.1:1" // nothing listens here
	})

	_, err := client.SearchInventory(context.Background(), "acid")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrCodeConnection, apiErr.Code)
}

func TestGetAddressesRequiresAuth(t *testing.T) {
	client := NewClient()

	_, err := client.GetAddresses(context.Background(), "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrCodeAuth, apiErr.Code)
}

func TestGetAddresses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/getAddresses", r.URL.Path)
		assert.Equal(t, "token-123", r.Header.Get("x-auth-token-user"))

		json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"results": map[string]any{
				"address": []map[string]any{
					{"_id": "65f000000000000000000002", "addressLine": "12 Industrial Road, Dhaka"},
				},
			},
		})
	})

	addresses, err := client.GetAddresses(context.Background(), "token-123")
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "12 Industrial Road, Dhaka", addresses[0]["addressLine"])
}

func TestGetIndustriesFiltersInactive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"results": map[string]any{
				"inventories": []map[string]any{
					{"_id": "a1", "name_en": "Textiles", "status": true, "isDeleted": false},
					{"_id": "a2", "name_en": "Closed", "status": false, "isDeleted": false},
					{"_id": "a3", "name_en": "Removed", "status": true, "isDeleted": true},
				},
			},
		})
	})

	industries, err := client.GetIndustries(context.Background())
	require.NoError(t, err)
	require.Len(t, industries, 1)
	assert.Equal(t, core.Industry{ID: "a1", Name: "Textiles"}, industries[0])
}

func TestAPIErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":   true,
			"message": "token expired",
		})
	})

	_, err := client.GetAddresses(context.Background(), "stale")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrCodeAPI, apiErr.Code)
	assert.Contains(t, apiErr.Message, "token expired")
}

func TestParsingError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	})

	_, err := client.SearchInventory(context.Background(), "acid")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrCodeParsing, apiErr.Code)
}
