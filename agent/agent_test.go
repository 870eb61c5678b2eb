package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/marketplace"
	"github.com/chemfalcon/chembot/model"
)

func fakeMarketplace(t *testing.T, handler http.HandlerFunc) *marketplace.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return marketplace.NewClient(func(o *marketplace.Options) {
		o.BaseURL = srv.URL
		o.HTTPClient = srv.Client()
	})
}

func TestProductAgentSearchAndConfirm(t *testing.T) {
	market := fakeMarketplace(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"results": map[string]any{
				"products": []map[string]any{
					{"_id": "65f000000000000000000001", "name_en": "Sulphuric Acid", "minQuantity": 1000.0, "maxQuantity": 5000.0},
				},
			},
		})
	})

	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "search_products", `{"query": "sulphuric acid"}`)
	llm.EnqueueText("I found 1 product: Sulphuric Acid. Would you like a sample, quote, PPR or order?")

	a := NewProductAgent(llm, market, nil)
	s := core.NewSession("sess-1", "token")

	turn, err := a.Respond(context.Background(), s, "I need sulphuric acid")
	require.NoError(t, err)
	assert.Contains(t, turn.Reply, "Sulphuric Acid")

	// The search result landed in the session cache.
	cached, ok := s.EnsureCache().Product("65f000000000000000000001")
	require.True(t, ok)
	assert.Equal(t, "Sulphuric Acid", cached["name_en"])

	// Confirmation turn: the model omits product_details; the tool backfills
	// from the cache by id.
	llm.EnqueueToolCall("fc-2", "confirm_selection",
		`{"product_id": "65f000000000000000000001", "product_name": "Sulphuric Acid", "request_type": "Sample"}`)
	llm.EnqueueText("Great, I've recorded your sample request and I'm handing you to detail collection.")

	turn, err = a.Respond(context.Background(), s, "Yes, product 1 as a sample please")
	require.NoError(t, err)

	staged := turn.Staged
	require.NotNil(t, staged.ProductID)
	assert.Equal(t, "65f000000000000000000001", *staged.ProductID)
	require.NotNil(t, staged.Request)
	assert.Equal(t, core.RequestSample, *staged.Request)
	require.NotNil(t, staged.Product)
	assert.Equal(t, "Sulphuric Acid", staged.Product["name_en"])
	require.NotNil(t, staged.Handoff)
	assert.Equal(t, core.StageRequestDetails, *staged.Handoff)
}

func TestProductAgentConfirmRejectedWithoutCachedProduct(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "confirm_selection",
		`{"product_id": "unknown-id", "product_name": "Mystery", "request_type": "Order"}`)
	llm.EnqueueText("That product isn't in the current results; please pick one of the listed products.")

	a := NewProductAgent(llm, nil, nil)
	s := core.NewSession("sess-1", "token")

	turn, err := a.Respond(context.Background(), s, "confirm mystery product")
	require.NoError(t, err)
	assert.Nil(t, turn.Staged.ProductID, "rejected confirmation must stage nothing")
	assert.Nil(t, turn.Staged.Handoff)
}

func TestDetailsAgentBulkValidation(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "extract_and_validate_bulk",
		`{"fields": {"unit": "kg", "quantity": 500, "price_per_unit": 25}}`)
	llm.EnqueueText("Saved unit, quantity and price. The expected total is 12500.")

	a := NewDetailsAgent(llm, nil)
	s := core.NewSession("sess-1", "token")
	s.Stage = core.StageRequestDetails
	s.Request = core.RequestOrder
	s.Product = map[string]any{"minQuantity": 100.0, "maxQuantity": 1000.0}
	core.ExpandForDetails(s)

	turn, err := a.Respond(context.Background(), s, "500 kg at 25 per unit")
	require.NoError(t, err)

	staged := turn.Staged.Details
	assert.Equal(t, "KG", staged[core.FieldUnit])
	assert.Equal(t, "500", staged[core.FieldQuantity])
	assert.Equal(t, "25", staged[core.FieldPricePerUnit])
	assert.Equal(t, "12500", staged[core.FieldExpectedPrice], "expected price derives automatically")
}

func TestDetailsAgentBulkAllOrNothing(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "extract_and_validate_bulk",
		`{"fields": {"unit": "kg", "quantity": "lots"}}`)
	llm.EnqueueText("The quantity must be a number; nothing was saved. How many KG do you need?")

	a := NewDetailsAgent(llm, nil)
	s := core.NewSession("sess-1", "token")
	s.Stage = core.StageRequestDetails
	s.Request = core.RequestOrder
	core.ExpandForDetails(s)

	turn, err := a.Respond(context.Background(), s, "lots of kg")
	require.NoError(t, err)
	assert.Empty(t, turn.Staged.Details, "one invalid field voids the whole batch")
}

func TestDetailsAgentCompletionHandoff(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "check_completion", `{}`)
	llm.EnqueueText("Everything is collected - passing you to the delivery team.")

	a := NewDetailsAgent(llm, nil)
	s := core.NewSession("sess-1", "token")
	s.Stage = core.StageRequestDetails
	s.Request = core.RequestPPR
	core.ExpandForDetails(s)
	for _, f := range core.RequiredFields(core.RequestPPR) {
		s.SetDetail(f, "1")
	}
	s.SetDetail(core.FieldUnit, "KG")
	s.SetDetail(core.FieldDeliveryDate, "2027-01-01")

	turn, err := a.Respond(context.Background(), s, "that's everything")
	require.NoError(t, err)
	require.NotNil(t, turn.Staged.Handoff)
	assert.Equal(t, core.StageAddressPurpose, *turn.Staged.Handoff)
}

func finalizeSession() *core.Session {
	s := core.NewSession("sess-1", "token")
	s.Stage = core.StageAddressPurpose
	s.Request = core.RequestOrder
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
	return s
}

func TestFinalizeAgentFetchesOncePerSession(t *testing.T) {
	fetches := 0
	market := fakeMarketplace(t, func(w http.ResponseWriter, r *http.Request) {
		fetches++
		switch r.URL.Path {
		case "/user/getAddresses":
			json.NewEncoder(w).Encode(map[string]any{
				"error": false,
				"results": map[string]any{
					"address": []map[string]any{
						{"_id": "65f000000000000000000002", "addressLine": "12 Industrial Road", "city": "Dhaka"},
					},
				},
			})
		case "/category/getAllIndustries":
			json.NewEncoder(w).Encode(map[string]any{
				"error": false,
				"results": map[string]any{
					"inventories": []map[string]any{
						{"_id": "65f000000000000000000003", "name_en": "Textiles", "status": true, "isDeleted": false},
					},
				},
			})
		}
	})

	llm := model.NewMockModel("test")
	llm.EnqueueText("Here are the available industries: 1. Textiles. Which one applies?")
	llm.EnqueueText("Noted.")

	a := NewFinalizeAgent(llm, market, nil)
	s := finalizeSession()

	_, err := a.Respond(context.Background(), s, "hello")
	require.NoError(t, err)
	assert.True(t, s.CachedDataFetched)
	assert.Len(t, s.CachedAddresses, 1)
	assert.Len(t, s.CachedIndustries, 1)
	assert.Equal(t, 2, fetches)

	_, err = a.Respond(context.Background(), s, "still here")
	require.NoError(t, err)
	assert.Equal(t, 2, fetches, "lists are fetched once per session")
}

func TestFinalizeAgentFetchFailureShortCircuits(t *testing.T) {
	market := fakeMarketplace(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{"error": true, "message": "upstream down"})
	})

	llm := model.NewMockModel("test") // must never be consulted
	a := NewFinalizeAgent(llm, market, nil)
	s := finalizeSession()

	turn, err := a.Respond(context.Background(), s, "hello")
	require.NoError(t, err)
	assert.Equal(t, fetchFailedReply, turn.Reply)
	assert.Empty(t, llm.Requests)
}

func TestFinalizeAgentSelectAddressByIndex(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "select_address", `{"address": "2"}`)
	llm.EnqueueText("Recorded the second address.")

	a := NewFinalizeAgent(llm, nil, nil)
	s := finalizeSession()
	s.CachedDataFetched = true
	s.CachedIndustries = []core.Industry{{ID: "i1", Name: "Textiles"}}
	s.CachedAddresses = []map[string]any{
		{"_id": "a1", "addressLine": "1 First Street"},
		{"_id": "a2", "addressLine": "2 Second Street"},
	}
	s.AppendExchange("hi", "hello") // not the first interaction

	turn, err := a.Respond(context.Background(), s, "the second one")
	require.NoError(t, err)
	require.NotNil(t, turn.Staged.Address)
	assert.Equal(t, "a2", turn.Staged.Address["_id"])
}

func TestFinalizeAgentSelectAddressFromUtterance(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "select_address", `{"address": "the one near the factory"}`)
	llm.EnqueueText("Recorded address 2.")

	a := NewFinalizeAgent(llm, nil, nil)
	s := finalizeSession()
	s.CachedDataFetched = true
	s.CachedIndustries = []core.Industry{{ID: "i1", Name: "Textiles"}}
	s.CachedAddresses = []map[string]any{
		{"_id": "a1", "addressLine": "1 First Street"},
		{"_id": "a2", "addressLine": "2 Second Street"},
	}
	s.AppendExchange("hi", "hello")

	// Neither a record, an index, nor a substring matches, but the raw
	// utterance carries a usable list number.
	turn, err := a.Respond(context.Background(), s, "number 2 please")
	require.NoError(t, err)
	require.NotNil(t, turn.Staged.Address)
	assert.Equal(t, "a2", turn.Staged.Address["_id"])
}

func TestFinalizeAgentPlaceOrder(t *testing.T) {
	market := fakeMarketplace(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/order/placeOrder", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   false,
			"message": "Order placed successfully!",
			"results": map[string]any{"order": map[string]any{"_id": "ord-1"}},
		})
	})

	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "place_order", `{"user_confirmed": true}`)
	llm.EnqueueText("Your order is placed. The order id is ord-1.")

	a := NewFinalizeAgent(llm, market, nil)
	s := finalizeSession()
	s.CachedDataFetched = true
	s.CachedIndustries = []core.Industry{{ID: "65f000000000000000000003", Name: "Textiles"}}
	s.CachedAddresses = []map[string]any{{"_id": "65f000000000000000000002", "addressLine": "12 Industrial Road"}}
	s.IndustryID = "65f000000000000000000003"
	s.IndustryName = "Textiles"
	s.Address = map[string]any{"_id": "65f000000000000000000002", "addressLine": "12 Industrial Road"}
	s.AppendExchange("hi", "hello")

	turn, err := a.Respond(context.Background(), s, "yes, place it")
	require.NoError(t, err)
	assert.True(t, turn.Staged.OrderPlaced)
	require.NotNil(t, turn.Staged.Handoff)
	assert.Equal(t, core.StageTerminal, *turn.Staged.Handoff)
}

func TestFinalizeAgentTerminalNoFurtherMutation(t *testing.T) {
	llm := model.NewMockModel("test")
	a := NewFinalizeAgent(llm, nil, nil)
	s := finalizeSession()
	s.OrderPlaced = true

	turn, err := a.Respond(context.Background(), s, "order again")
	require.NoError(t, err)
	assert.Equal(t, orderPlacedReply, turn.Reply)
	assert.Empty(t, llm.Requests)
}

func TestPlaceOrderRequiresConfirmation(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueToolCall("fc-1", "place_order", `{"user_confirmed": false}`)
	llm.EnqueueText("I need your explicit confirmation before placing the order.")

	a := NewFinalizeAgent(llm, nil, nil)
	s := finalizeSession()
	s.CachedDataFetched = true
	s.CachedIndustries = []core.Industry{{ID: "i1", Name: "Textiles"}}
	s.AppendExchange("hi", "hello")

	turn, err := a.Respond(context.Background(), s, "maybe")
	require.NoError(t, err)
	assert.False(t, turn.Staged.OrderPlaced)
	assert.Nil(t, turn.Staged.Handoff)
}

func TestAgentRejectsForeignStage(t *testing.T) {
	llm := model.NewMockModel("test")
	a := NewDetailsAgent(llm, nil)

	s := core.NewSession("sess-1", "token") // still owned by the product stage

	turn, err := a.Respond(context.Background(), s, "hello")
	require.NoError(t, err)

	assert.Equal(t, wrongStageReply, turn.Reply)
	assert.True(t, turn.Staged.Empty())
	assert.Empty(t, llm.Requests, "the model is never consulted off-stage")
}

func TestAgentReplaysHistoryAsMessagePairs(t *testing.T) {
	llm := model.NewMockModel("test")
	llm.EnqueueText("Which chemical do you need?")

	a := NewProductAgent(llm, nil, nil)
	s := core.NewSession("sess-1", "token")
	s.AppendExchange("I need acetone", "We stock acetone. Sample, quote, PPR or order?")

	_, err := a.Respond(context.Background(), s, "a sample please")
	require.NoError(t, err)

	require.Len(t, llm.Requests, 1)
	messages := llm.Requests[0].Messages
	require.Len(t, messages, 3)
	assert.Equal(t, model.Message{Role: "user", Content: "I need acetone"}, messages[0])
	assert.Equal(t, model.Message{Role: "assistant", Content: "We stock acetone. Sample, quote, PPR or order?"}, messages[1])
	assert.Equal(t, model.Message{Role: "user", Content: "a sample please"}, messages[2])
}
