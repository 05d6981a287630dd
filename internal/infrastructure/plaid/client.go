// Package plaid is the HTTP client for the Plaid aggregation API.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"billpay/internal/shared/config"
)

const (
	sandboxBaseURL    = "https://sandbox.plaid.com"
	productionBaseURL = "https://production.plaid.com"
	apiVersion        = "2020-09-14"
	defaultTimeout    = 30 * time.Second

	linkTokenCreatePath      = "/link/token/create"
	publicTokenExchangePath  = "/item/public_token/exchange"
	accountsGetPath          = "/accounts/get"
	transactionsGetPath      = "/transactions/get"
	liabilitiesGetPath       = "/liabilities/get"
	sandboxPublicTokenCreate = "/sandbox/public_token/create"
)

// Error codes this client gives special treatment.
const (
	ErrorCodeInvalidProduct  = "INVALID_PRODUCT"
	ErrorCodeProductNotReady = "PRODUCT_NOT_READY"
)

// Client handles communication with the Plaid API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new Plaid API client for the resolved credential set.
func NewClient(cfg config.PlaidConfig) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == config.PlaidEnvProduction {
		baseURL = productionBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:  baseURL,
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
	}
}

// APIError represents an error response from the Plaid API
type APIError struct {
	StatusCode   int    `json:"-"`
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid API error (status %d): %s - %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

// ProductNotReady reports whether the error means the product is still
// being prepared upstream and the caller should retry later.
func (e *APIError) ProductNotReady() bool {
	return e.ErrorCode == ErrorCodeProductNotReady
}

// IsProductRejection reports whether the error rejects one or more of the
// requested products.
func (e *APIError) IsProductRejection() bool {
	return e.ErrorCode == ErrorCodeInvalidProduct ||
		strings.Contains(e.ErrorMessage, "not authorized to access the following products")
}

var rejectedProductsRe = regexp.MustCompile(`products:? \[(.+?)\]`)

// RejectedProducts parses the product names out of a product-rejection
// error message. Returns nil when none can be extracted.
func (e *APIError) RejectedProducts() []string {
	match := rejectedProductsRe.FindStringSubmatch(e.ErrorMessage)
	if match == nil {
		return nil
	}

	raw := strings.ReplaceAll(match[1], `\"`, `"`)
	raw = strings.ReplaceAll(raw, "'", "")

	var products []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"`)
		if name != "" {
			products = append(products, name)
		}
	}
	return products
}

// post sends a JSON request with credentials injected and decodes the
// response into out. Non-200 responses are returned as *APIError.
func (c *Client) post(ctx context.Context, path string, payload map[string]any, out any) error {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["client_id"] = c.clientID
	body["secret"] = c.secret

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Plaid-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// LinkTokenCreate requests a short-lived link token for the given user and
// product list.
func (c *Client) LinkTokenCreate(ctx context.Context, req LinkTokenCreateRequest) (*LinkTokenCreateResponse, error) {
	user := map[string]any{"client_user_id": req.ClientUserID}

	payload := map[string]any{
		"client_name":   req.ClientName,
		"language":      "en",
		"country_codes": req.CountryCodes,
		"user":          user,
		"products":      req.Products,
	}
	if req.RedirectURI != "" {
		payload["redirect_uri"] = req.RedirectURI
	}
	if req.Webhook != "" {
		payload["webhook"] = req.Webhook
	}

	var resp LinkTokenCreateResponse
	if err := c.post(ctx, linkTokenCreatePath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemPublicTokenExchange exchanges a one-time public token for a durable
// access token and item id.
func (c *Client) ItemPublicTokenExchange(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	payload := map[string]any{"public_token": publicToken}

	var resp ExchangeResponse
	if err := c.post(ctx, publicTokenExchangePath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AccountsGet fetches the full account list for an access token.
func (c *Client) AccountsGet(ctx context.Context, accessToken string) (*AccountsGetResponse, error) {
	payload := map[string]any{"access_token": accessToken}

	var resp AccountsGetResponse
	if err := c.post(ctx, accountsGetPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransactionsGet fetches transactions within the [startDate, endDate]
// window (YYYY-MM-DD), up to count rows.
func (c *Client) TransactionsGet(ctx context.Context, accessToken, startDate, endDate string, count int) (*TransactionsGetResponse, error) {
	payload := map[string]any{
		"access_token": accessToken,
		"start_date":   startDate,
		"end_date":     endDate,
		"options": map[string]any{
			"count":                             count,
			"include_personal_finance_category": true,
		},
	}

	var resp TransactionsGetResponse
	if err := c.post(ctx, transactionsGetPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LiabilitiesGet fetches liability data (credit, student, mortgage) for an
// access token.
func (c *Client) LiabilitiesGet(ctx context.Context, accessToken string) (*LiabilitiesGetResponse, error) {
	payload := map[string]any{"access_token": accessToken}

	var resp LiabilitiesGetResponse
	if err := c.post(ctx, liabilitiesGetPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SandboxPublicTokenCreate creates a public token directly, bypassing the
// Link widget. Sandbox environments only.
func (c *Client) SandboxPublicTokenCreate(ctx context.Context, institutionID string, products []string) (string, error) {
	payload := map[string]any{
		"institution_id":   institutionID,
		"initial_products": products,
	}

	var resp struct {
		PublicToken string `json:"public_token"`
		RequestID   string `json:"request_id"`
	}
	if err := c.post(ctx, sandboxPublicTokenCreate, payload, &resp); err != nil {
		return "", err
	}
	return resp.PublicToken, nil
}
