package plaid

import (
	"context"
)

// ClientInterface defines the methods required from the Plaid API client
type ClientInterface interface {
	LinkTokenCreate(ctx context.Context, req LinkTokenCreateRequest) (*LinkTokenCreateResponse, error)
	ItemPublicTokenExchange(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	AccountsGet(ctx context.Context, accessToken string) (*AccountsGetResponse, error)
	TransactionsGet(ctx context.Context, accessToken, startDate, endDate string, count int) (*TransactionsGetResponse, error)
	LiabilitiesGet(ctx context.Context, accessToken string) (*LiabilitiesGetResponse, error)
	SandboxPublicTokenCreate(ctx context.Context, institutionID string, products []string) (string, error)
}
