package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/chemfalcon/chembot/core"
)

// PlacementResult is the outcome of an order or requirement submission.
// Message is safe to relay to the user verbatim.
type PlacementResult struct {
	Status        string `json:"status"` // "success" or "error"
	Message       string `json:"message"`
	OrderID       string `json:"order_id,omitempty"`
	RequirementID string `json:"requirement_id,omitempty"`
	ErrorType     string `json:"error_type,omitempty"`
	StatusCode    int    `json:"status_code,omitempty"`
}

// Success reports whether the placement went through.
func (r *PlacementResult) Success() bool { return r.Status == "success" }

func placementError(errType, message string) *PlacementResult {
	return &PlacementResult{Status: "error", ErrorType: errType, Message: message}
}

// Place submits the order described by the session. PPR requests go to the
// createRequirement endpoint as JSON; sample, quote and full orders go to
// placeOrder as a multipart form. Failures come back typed, never as a panic
// or fabricated success.
func (c *Client) Place(ctx context.Context, s *core.Session) *PlacementResult {
	if s.UserAuth == "" {
		return placementError(core.ErrCodeAuth, "No authentication token provided")
	}

	if s.Request == core.RequestPPR {
		return c.createRequirement(ctx, s)
	}
	return c.placeOrder(ctx, s)
}

// createRequirement submits a purchase price request as a JSON payload.
func (c *Client) createRequirement(ctx context.Context, s *core.Session) *PlacementResult {
	addressID, ok := addressID(s.Address)
	if !ok {
		return placementError(core.ErrCodeAddress, "Valid address ID not found. Please select a valid address.")
	}
	if s.ProductID == "" {
		return placementError(core.ErrCodeData, "Product information missing. Please restart the order process.")
	}
	for _, field := range []string{core.FieldQuantity, core.FieldUnit, core.FieldDeliveryDate} {
		if s.Details[field] == "" {
			return placementError(core.ErrCodeData,
				fmt.Sprintf("Required field '%s' is missing. Please restart the order process.", field))
		}
	}

	payload := map[string]any{
		"product":       s.ProductID,
		"expectedPrice": s.Details[core.FieldExpectedPrice],
		"address":       addressID,
		"quantity":      s.Details[core.FieldQuantity],
		"quantityType":  s.Details[core.FieldUnit],
		"endDate":       s.Details[core.FieldDeliveryDate],
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return placementError(core.ErrCodeUnknown, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order/createRequirement", bytes.NewReader(raw))
	if err != nil {
		return placementError(core.ErrCodeUnknown, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAuthToken, s.UserAuth)
	req.Header.Set(headerUserType, "Buyer")

	c.logger.Info("marketplace.ppr.submit", "session_id", s.ID, "product_id", s.ProductID)

	status, env, perr := c.submit(req)
	if perr != nil {
		return perr
	}

	if (status == http.StatusOK || status == http.StatusCreated) && !env.Error {
		var results struct {
			Requirement map[string]any `json:"requirement"`
		}
		_ = json.Unmarshal(env.Results, &results)
		return &PlacementResult{
			Status:        "success",
			Message:       nonEmpty(env.Message, "Requirement created successfully"),
			RequirementID: stringField(results.Requirement, "_id"),
		}
	}

	return &PlacementResult{
		Status:     "error",
		ErrorType:  core.ErrCodeAPI,
		Message:    nonEmpty(env.Message, "Unknown error"),
		StatusCode: status,
	}
}

// placeOrder submits a sample, quote or full order as a multipart form.
func (c *Client) placeOrder(ctx context.Context, s *core.Session) *PlacementResult {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	// Address fields are flattened into address[key] entries. The record id
	// and empty values are skipped; the backend rejects both.
	for key, value := range s.Address {
		if key == "_id" {
			continue
		}
		if text, ok := formValue(value); ok {
			_ = form.WriteField(fmt.Sprintf("address[%s]", key), text)
		}
	}

	_ = form.WriteField("product", s.ProductID)
	_ = form.WriteField("quantity", s.Details[core.FieldQuantity])
	_ = form.WriteField("expectedAmount", s.Details[core.FieldExpectedPrice])
	_ = form.WriteField("quantityType", s.Details[core.FieldUnit])
	_ = form.WriteField("type", capitalize(string(s.Request)))

	if s.Request.IsSample() {
		_ = form.WriteField("isSampleOrder", "TRUE")
	}

	if industryID := c.resolveIndustryID(s); industryID != "" {
		_ = form.WriteField("industry", industryID)
	}
	optional := map[string]string{
		"incoterm":              s.Details[core.FieldIncoterm],
		"modeOfPayment":         s.Details[core.FieldModeOfPayment],
		"packingType":           s.Details[core.FieldPackagingPref],
		"expectedPurchaseDate":  s.Details[core.FieldDeliveryDate],
		"shippingContactNumber": s.Details[core.FieldPhone],
	}
	for key, value := range optional {
		if value != "" {
			_ = form.WriteField(key, value)
		}
	}

	if err := form.Close(); err != nil {
		return placementError(core.ErrCodeUnknown, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order/placeOrder", &buf)
	if err != nil {
		return placementError(core.ErrCodeUnknown, err.Error())
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set(headerAuthToken, s.UserAuth)
	req.Header.Set(headerUserType, "Buyer")

	c.logger.Info("marketplace.order.submit",
		"session_id", s.ID, "product_id", s.ProductID, "type", string(s.Request))

	status, env, perr := c.submit(req)
	if perr != nil {
		return perr
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusPartialContent:
		if !env.Error {
			var results struct {
				Order map[string]any `json:"order"`
			}
			_ = json.Unmarshal(env.Results, &results)
			return &PlacementResult{
				Status:  "success",
				Message: nonEmpty(env.Message, "Order placed successfully!"),
				OrderID: stringField(results.Order, "_id"),
			}
		}
	}

	return &PlacementResult{
		Status:     "error",
		ErrorType:  core.ErrCodeAPI,
		Message:    nonEmpty(env.Message, "Unknown error"),
		StatusCode: status,
	}
}

// submit performs the round trip and decodes the response envelope.
func (c *Client) submit(req *http.Request) (int, *envelope, *PlacementResult) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("marketplace.submit.failed", "error", err.Error())
		return 0, nil, placementError(core.ErrCodeConnection, fmt.Sprintf("Unexpected error: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, placementError(core.ErrCodeConnection, fmt.Sprintf("Unexpected error: %v", err))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return resp.StatusCode, nil, placementError(core.ErrCodeParsing, "Invalid JSON from server")
	}
	return resp.StatusCode, &env, nil
}

// resolveIndustryID returns the industry id to submit. A stored value that is
// not a well-formed record id is resolved by exact name match against the
// session's cached industry list.
func (c *Client) resolveIndustryID(s *core.Session) string {
	id := s.IndustryID
	if id == "" {
		return ""
	}
	if isRecordID(id) {
		return id
	}
	for _, ind := range s.CachedIndustries {
		if strings.EqualFold(ind.Name, id) || strings.EqualFold(ind.Name, s.IndustryName) {
			c.logger.Warn("marketplace.industry.resolved_by_name", "stored", id, "resolved", ind.ID)
			return ind.ID
		}
	}
	c.logger.Warn("marketplace.industry.unresolved", "stored", id)
	return ""
}

// isRecordID reports whether s looks like a 24-hex-char document id.
func isRecordID(s string) bool {
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// addressID extracts a usable record id from the selected address.
func addressID(address map[string]any) (string, bool) {
	if address == nil {
		return "", false
	}
	id := stringField(address, "_id")
	if id == "" || id == "unknown" {
		return "", false
	}
	return id, true
}

// formValue renders a value for the multipart form, reporting false for
// values that must be skipped (nil, empty string, empty list).
func formValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case []any:
		if len(t) == 0 {
			return "", false
		}
		return fmt.Sprintf("%v", t), true
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", t), "0"), "."), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// capitalize uppercases the first letter only ("sample" -> "Sample").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
