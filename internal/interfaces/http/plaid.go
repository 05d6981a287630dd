package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"billpay/internal/domain/plaidsync"
	"billpay/internal/domain/user"
	"billpay/internal/shared/middleware"
)

// SyncService is the slice of the link/sync service the HTTP layer uses.
type SyncService interface {
	Enabled() bool
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	CompleteLink(ctx context.Context, userID int64, publicToken string) (*plaidsync.SyncSummary, error)
	Unlink(ctx context.Context, userID int64, reset bool) error
	Status(ctx context.Context, userID int64) (*plaidsync.LinkStatus, error)
	SyncAll(ctx context.Context, userID int64) (*plaidsync.SyncSummary, error)
	SyncAccounts(ctx context.Context, userID int64) (*plaidsync.AccountSyncResult, error)
	SyncTransactions(ctx context.Context, userID int64) (*plaidsync.TransactionSyncResult, error)
	SyncForItem(ctx context.Context, itemID string) (*plaidsync.TransactionSyncResult, error)
}

// PlaidHandler exposes the account-linking and sync workflow.
type PlaidHandler struct {
	sync SyncService
}

func NewPlaidHandler(sync SyncService) *PlaidHandler {
	return &PlaidHandler{sync: sync}
}

type LinkTokenResponse struct {
	LinkToken string `json:"linkToken"`
}

type ExchangeTokenRequest struct {
	PublicToken string `json:"publicToken"`
}

type UnlinkRequest struct {
	Confirm bool `json:"confirm"`
	Reset   bool `json:"reset"`
}

// HandleCreateLinkToken starts a link session for the authenticated user
func (h *PlaidHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	token, err := h.sync.CreateLinkToken(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err, "Failed to create link token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LinkTokenResponse{LinkToken: token})
}

// HandleExchangeToken completes the link and runs the initial sync
func (h *PlaidHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	var req ExchangeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := h.sync.CompleteLink(r.Context(), userID, req.PublicToken)
	if err != nil {
		h.writeSyncError(w, userID, err, "Failed to complete link")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleUnlink severs the link. Requires an explicit confirm flag; with
// reset, all provider-sourced rows are deleted as well.
func (h *PlaidHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	var req UnlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		http.Error(w, "Unlink requires confirm=true", http.StatusBadRequest)
		return
	}

	if err := h.sync.Unlink(r.Context(), userID, req.Reset); err != nil {
		h.writeSyncError(w, userID, err, "Failed to unlink")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// HandleStatus reports the current link state for the authenticated user
func (h *PlaidHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	status, err := h.sync.Status(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err, "Failed to get link status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// HandleRefresh runs a full sync of all enabled products
func (h *PlaidHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	summary, err := h.sync.SyncAll(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err, "Sync failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandleRefreshAccounts refreshes account balances only
func (h *PlaidHandler) HandleRefreshAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	result, err := h.sync.SyncAccounts(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err, "Account sync failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleRefreshTransactions refreshes transactions only
func (h *PlaidHandler) HandleRefreshTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePost(w, r)
	if !ok {
		return
	}

	result, err := h.sync.SyncTransactions(r.Context(), userID)
	if err != nil {
		h.writeSyncError(w, userID, err, "Transaction sync failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type WebhookRequest struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

// HandleWebhook receives provider webhooks. Unauthenticated: the item id is
// resolved to a user internally. Always acks with 200 once the payload is
// readable so the provider does not retry.
func (h *PlaidHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}
	if req.ItemID == "" {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}

	log.Printf("Webhook received: type=%s code=%s item=%s", req.WebhookType, req.WebhookCode, req.ItemID)

	if _, err := h.sync.SyncForItem(r.Context(), req.ItemID); err != nil {
		// Ack anyway: webhook delivery succeeded even if the sync did not.
		log.Printf("Webhook sync for item %s failed: %v", req.ItemID, err)
	}

	w.WriteHeader(http.StatusOK)
}

// writeSyncError maps link/sync domain errors onto HTTP statuses
func (h *PlaidHandler) writeSyncError(w http.ResponseWriter, userID int64, err error, fallback string) {
	switch {
	case errors.Is(err, plaidsync.ErrCredentialsMissing):
		http.Error(w, "Bank linking is not configured", http.StatusServiceUnavailable)
	case errors.Is(err, plaidsync.ErrUpstreamUnavailable):
		http.Error(w, "Bank data provider is unavailable", http.StatusBadGateway)
	case errors.Is(err, plaidsync.ErrProductRejected):
		http.Error(w, "Requested products are not available", http.StatusBadGateway)
	case errors.Is(err, plaidsync.ErrSyncInProgress):
		http.Error(w, "A sync is already in progress", http.StatusConflict)
	case errors.Is(err, plaidsync.ErrRelinkRequired):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":          "Bank connection is no longer valid",
			"relinkRequired": true,
		})
	case errors.Is(err, plaidsync.ErrNotLinked):
		http.Error(w, "No bank account is linked", http.StatusBadRequest)
	case errors.Is(err, plaidsync.ErrExchangeFailed):
		http.Error(w, "Token exchange failed", http.StatusBadRequest)
	case errors.Is(err, user.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	default:
		log.Printf("Sync error for user %d: %v", userID, err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

// requirePost enforces POST and extracts the authenticated user id
func requirePost(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return 0, false
	}
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
