package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"billpay/internal/domain/bill"
	"billpay/internal/shared/middleware"
)

// BillHandler serves bill CRUD. Manually created bills never carry a
// provenance id; sync-owned bills can be edited but come back on the next
// sync and disappear on unlink+reset.
type BillHandler struct {
	billRepo bill.Repository
}

func NewBillHandler(billRepo bill.Repository) *BillHandler {
	return &BillHandler{billRepo: billRepo}
}

type CreateBillRequest struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	DueDate   string  `json:"dueDate"` // YYYY-MM-DD
	Frequency string  `json:"frequency"`
	Category  *string `json:"category"`
	Status    string  `json:"status"`
	Autopay   bool    `json:"autopay"`
	Notes     *string `json:"notes"`
}

type UpdateBillRequest struct {
	Name    *string  `json:"name"`
	Amount  *float64 `json:"amount"`
	DueDate *string  `json:"dueDate"` // YYYY-MM-DD
	Status  *string  `json:"status"`
	Autopay *bool    `json:"autopay"`
	Notes   *string  `json:"notes"`
}

// HandleBills handles list (GET) and manual creation (POST)
func (h *BillHandler) HandleBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleListBills(w, r, userID)
	case http.MethodPost:
		h.handleCreateBill(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BillHandler) handleListBills(w http.ResponseWriter, r *http.Request, userID int64) {
	bills, err := h.billRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing bills for user %d: %v", userID, err)
		http.Error(w, "Failed to list bills", http.StatusInternalServerError)
		return
	}
	if bills == nil {
		bills = []*bill.Bill{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bills)
}

func (h *BillHandler) handleCreateBill(w http.ResponseWriter, r *http.Request, userID int64) {
	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		http.Error(w, "Due date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Manual bills never carry a provenance id; only syncs set one.
	params := bill.CreateParams{
		UserID:    userID,
		Name:      req.Name,
		Amount:    req.Amount,
		DueDate:   dueDate,
		Frequency: req.Frequency,
		Category:  req.Category,
		Status:    req.Status,
		Autopay:   req.Autopay,
		Notes:     req.Notes,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.billRepo.Create(r.Context(), params)
	if err != nil {
		log.Printf("Error creating bill for user %d: %v", userID, err)
		http.Error(w, "Failed to create bill", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleBillByID handles GET, PATCH and DELETE on a single bill
func (h *BillHandler) HandleBillByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	billID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid bill ID", http.StatusBadRequest)
		return
	}

	owned, err := h.billRepo.GetByID(r.Context(), billID)
	if err != nil {
		if errors.Is(err, bill.ErrBillNotFound) {
			http.Error(w, "Bill not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting bill %d: %v", billID, err)
		http.Error(w, "Failed to get bill", http.StatusInternalServerError)
		return
	}
	if owned.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(owned)
	case http.MethodPatch:
		h.handleUpdateBill(w, r, billID)
	case http.MethodDelete:
		h.handleDeleteBill(w, r, billID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BillHandler) handleUpdateBill(w http.ResponseWriter, r *http.Request, billID int64) {
	var req UpdateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := bill.UpdateParams{
		Name:    req.Name,
		Amount:  req.Amount,
		Status:  req.Status,
		Autopay: req.Autopay,
		Notes:   req.Notes,
	}
	if req.DueDate != nil {
		dueDate, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			http.Error(w, "Due date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		params.DueDate = &dueDate
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := h.billRepo.Update(r.Context(), billID, params)
	if err != nil {
		log.Printf("Error updating bill %d: %v", billID, err)
		http.Error(w, "Failed to update bill", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *BillHandler) handleDeleteBill(w http.ResponseWriter, r *http.Request, billID int64) {
	if err := h.billRepo.Delete(r.Context(), billID); err != nil {
		log.Printf("Error deleting bill %d: %v", billID, err)
		http.Error(w, "Failed to delete bill", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
