package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"billpay/internal/domain/income"
	"billpay/internal/shared/middleware"
)

// IncomeHandler serves income CRUD. The provenance rule mirrors bills:
// manual rows never carry a provenance id.
type IncomeHandler struct {
	incomeRepo income.Repository
}

func NewIncomeHandler(incomeRepo income.Repository) *IncomeHandler {
	return &IncomeHandler{incomeRepo: incomeRepo}
}

type CreateIncomeRequest struct {
	Source      string   `json:"source"`
	GrossAmount float64  `json:"grossAmount"`
	NetAmount   *float64 `json:"netAmount"`
	Frequency   string   `json:"frequency"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Notes       *string  `json:"notes"`
}

type UpdateIncomeRequest struct {
	Source      *string  `json:"source"`
	GrossAmount *float64 `json:"grossAmount"`
	NetAmount   *float64 `json:"netAmount"`
	Frequency   *string  `json:"frequency"`
	Date        *string  `json:"date"` // YYYY-MM-DD
	Notes       *string  `json:"notes"`
}

// HandleIncomes handles list (GET) and manual creation (POST)
func (h *IncomeHandler) HandleIncomes(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleListIncomes(w, r, userID)
	case http.MethodPost:
		h.handleCreateIncome(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *IncomeHandler) handleListIncomes(w http.ResponseWriter, r *http.Request, userID int64) {
	incomes, err := h.incomeRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing incomes for user %d: %v", userID, err)
		http.Error(w, "Failed to list incomes", http.StatusInternalServerError)
		return
	}
	if incomes == nil {
		incomes = []*income.Income{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(incomes)
}

func (h *IncomeHandler) handleCreateIncome(w http.ResponseWriter, r *http.Request, userID int64) {
	var req CreateIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Manual income rows never carry a provenance id; only syncs set one.
	params := income.CreateParams{
		UserID:      userID,
		Source:      req.Source,
		GrossAmount: req.GrossAmount,
		NetAmount:   req.NetAmount,
		Frequency:   req.Frequency,
		Date:        date,
		Notes:       req.Notes,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.incomeRepo.Create(r.Context(), params)
	if err != nil {
		log.Printf("Error creating income for user %d: %v", userID, err)
		http.Error(w, "Failed to create income", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleIncomeByID handles GET, PATCH and DELETE on a single income entry
func (h *IncomeHandler) HandleIncomeByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	incomeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid income ID", http.StatusBadRequest)
		return
	}

	owned, err := h.incomeRepo.GetByID(r.Context(), incomeID)
	if err != nil {
		if errors.Is(err, income.ErrIncomeNotFound) {
			http.Error(w, "Income not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting income %d: %v", incomeID, err)
		http.Error(w, "Failed to get income", http.StatusInternalServerError)
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
		h.handleUpdateIncome(w, r, incomeID)
	case http.MethodDelete:
		h.handleDeleteIncome(w, r, incomeID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *IncomeHandler) handleUpdateIncome(w http.ResponseWriter, r *http.Request, incomeID int64) {
	var req UpdateIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := income.UpdateParams{
		Source:      req.Source,
		GrossAmount: req.GrossAmount,
		NetAmount:   req.NetAmount,
		Frequency:   req.Frequency,
		Notes:       req.Notes,
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			http.Error(w, "Date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		params.Date = &date
	}

	updated, err := h.incomeRepo.Update(r.Context(), incomeID, params)
	if err != nil {
		log.Printf("Error updating income %d: %v", incomeID, err)
		http.Error(w, "Failed to update income", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *IncomeHandler) handleDeleteIncome(w http.ResponseWriter, r *http.Request, incomeID int64) {
	if err := h.incomeRepo.Delete(r.Context(), incomeID); err != nil {
		log.Printf("Error deleting income %d: %v", incomeID, err)
		http.Error(w, "Failed to delete income", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
