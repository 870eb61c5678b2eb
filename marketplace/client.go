// Package marketplace implements the client for the chemical-marketplace
// vendor API: inventory search, saved addresses, the industry catalog and the
// two order-placement endpoints.
//
// The vendor speaks JSON over HTTPS with a quirk worth noting: every read
// endpoint is a PATCH carrying a JSON body, while order placement is a POST.
// Responses wrap their payload as {error, message, results{...}} and a
// non-error outcome requires BOTH a success status code and error=false.
package marketplace

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chemfalcon/chembot/core"
	"github.com/chemfalcon/chembot/logging"
)

// DefaultBaseURL points at the production vendor API.
const DefaultBaseURL = "https://chemfalcon.com:2053"

// Header names the vendor expects on every call.
const (
	headerAuthToken = "x-auth-token-user"
	headerUserType  = "x-user-type"
	headerLanguage  = "x-auth-language"
)

// APIError is a typed failure from the vendor API. Code carries one of the
// core.ErrCode* values so callers can branch without string matching.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("marketplace [%s] (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("marketplace [%s]: %s", e.Code, e.Message)
}

// envelope is the vendor's standard response wrapper.
type envelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

// Options configure the marketplace client.
type Options struct {
	BaseURL string
	// Timeout bounds each vendor call. Zero keeps net/http defaults.
	Timeout time.Duration
	// InsecureSkipTLSVerify disables certificate verification. The vendor's
	// staging hosts serve mismatched certificates.
	InsecureSkipTLSVerify bool
	HTTPClient            *http.Client
	Logger                logging.Logger
}

// Client talks to the vendor marketplace API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

// NewClient constructs a marketplace client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipTLSVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Client{
		baseURL: opts.BaseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// SearchInventory queries the vendor catalog. The returned products retain
// the vendor's field names (_id, name_en, brand, sellerName, minQuantity,
// maxQuantity, specification). The bulky sellers and rawResult blocks are
// stripped before the result reaches the model.
func (c *Client) SearchInventory(ctx context.Context, query string) ([]map[string]any, error) {
	body, err := c.call(ctx, http.MethodPatch, "/inventory/getBotSearchResult", "", map[string]any{"query": query})
	if err != nil {
		return nil, err
	}

	var results struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.Unmarshal(body.Results, &results); err != nil {
		return nil, &APIError{Code: core.ErrCodeParsing, Message: "inventory response has unexpected shape"}
	}

	for _, p := range results.Products {
		delete(p, "sellers")
		delete(p, "rawResult")
	}

	c.logger.Info("marketplace.search", "query", query, "products", len(results.Products))
	return results.Products, nil
}

// GetAddresses fetches the authenticated user's saved delivery addresses.
func (c *Client) GetAddresses(ctx context.Context, userAuth string) ([]map[string]any, error) {
	if userAuth == "" {
		return nil, &APIError{Code: core.ErrCodeAuth, Message: "no authentication token provided"}
	}

	body, err := c.call(ctx, http.MethodPatch, "/user/getAddresses", userAuth, map[string]any{})
	if err != nil {
		return nil, err
	}

	var results struct {
		Address []map[string]any `json:"address"`
	}
	if err := json.Unmarshal(body.Results, &results); err != nil {
		return nil, &APIError{Code: core.ErrCodeParsing, Message: "address response has unexpected shape"}
	}

	c.logger.Info("marketplace.addresses", "count", len(results.Address))
	return results.Address, nil
}

// GetIndustries fetches the platform industry catalog filtered down to
// active, non-deleted entries.
func (c *Client) GetIndustries(ctx context.Context) ([]core.Industry, error) {
	body, err := c.call(ctx, http.MethodPatch, "/category/getAllIndustries", "", map[string]any{})
	if err != nil {
		return nil, err
	}

	var results struct {
		Inventories []struct {
			ID        string `json:"_id"`
			NameEn    string `json:"name_en"`
			Status    bool   `json:"status"`
			IsDeleted bool   `json:"isDeleted"`
		} `json:"inventories"`
	}
	if err := json.Unmarshal(body.Results, &results); err != nil {
		return nil, &APIError{Code: core.ErrCodeParsing, Message: "industry response has unexpected shape"}
	}

	var industries []core.Industry
	for _, ind := range results.Inventories {
		if ind.Status && !ind.IsDeleted {
			industries = append(industries, core.Industry{ID: ind.ID, Name: ind.NameEn})
		}
	}

	c.logger.Info("marketplace.industries", "total", len(results.Inventories), "active", len(industries))
	return industries, nil
}

// call performs one vendor round trip and unwraps the response envelope.
// Any envelope with error=true or a non-success status becomes an APIError.
func (c *Client) call(ctx context.Context, method, path, userAuth string, payload any) (*envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Code: core.ErrCodeParsing, Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, &APIError{Code: core.ErrCodeUnknown, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerUserType, "Buyer")
	req.Header.Set(headerLanguage, "English")
	if userAuth != "" {
		req.Header.Set(headerAuthToken, userAuth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("marketplace.call.failed", "path", path, "error", err.Error())
		return nil, &APIError{Code: core.ErrCodeConnection, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Code: core.ErrCodeConnection, Message: err.Error()}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &APIError{
			Code:       core.ErrCodeParsing,
			Message:    "invalid JSON returned from vendor API",
			StatusCode: resp.StatusCode,
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{
			Code:       core.ErrCodeAPI,
			Message:    nonEmpty(env.Message, "vendor API returned an error"),
			StatusCode: resp.StatusCode,
		}
	}
	if env.Error {
		return nil, &APIError{
			Code:       core.ErrCodeAPI,
			Message:    nonEmpty(env.Message, "vendor API returned an error"),
			StatusCode: resp.StatusCode,
		}
	}

	return &env, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
