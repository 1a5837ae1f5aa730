package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/services"
)

type transactionRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	IsExpense   bool   `json:"is_expense"`
	ReceiptRef  string `json:"receipt_ref,omitempty"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	IsExpense   bool   `json:"is_expense"`
	ReceiptRef  string `json:"receipt_ref,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount.String(),
		Description: tx.Description,
		Category:    tx.Category,
		Date:        tx.Date,
		IsExpense:   tx.IsExpense,
		ReceiptRef:  tx.ReceiptRef,
		CreatedAt:   tx.CreatedAt,
	}
}

func (req transactionRequest) toTransaction(userID string) (core.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	return core.Transaction{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Date:        strings.TrimSpace(req.Date),
		IsExpense:   req.IsExpense,
		ReceiptRef:  strings.TrimSpace(req.ReceiptRef),
		UserID:      userID,
	}, nil
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		txs, err := s.transactions.List(r.Context(), userID)
		if err != nil {
			slog.ErrorContext(r.Context(), "List transactions failed", "user_id", userID, "error", err)
			writeServiceError(w, err)
			return
		}
		out := make([]transactionResponse, 0, len(txs))
		for _, tx := range txs {
			out = append(out, toTransactionResponse(tx))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tx, err := req.toTransaction(userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := tx.Validate(); err != nil {
			writeServiceError(w, err)
			return
		}

		id, err := s.transactions.Add(r.Context(), tx)
		if err != nil {
			slog.ErrorContext(r.Context(), "Create transaction failed", "user_id", userID, "error", err)
			writeServiceError(w, err)
			return
		}
		tx.ID = id
		s.invalidateSummary(userID, tx.Date)
		writeJSON(w, http.StatusCreated, toTransactionResponse(tx))

	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		tx, err := req.toTransaction(userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		tx.ID = id
		if err := tx.Validate(); err != nil {
			writeServiceError(w, err)
			return
		}

		if err := s.transactions.Update(r.Context(), tx); err != nil {
			writeServiceError(w, err)
			return
		}
		s.invalidateSummary(userID, tx.Date)
		writeJSON(w, http.StatusOK, toTransactionResponse(tx))

	case http.MethodDelete:
		// The cached summary to invalidate is the month the transaction
		// belongs to, so fetch it before it disappears.
		tx, err := s.transactions.Get(r.Context(), userID, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := s.transactions.Delete(r.Context(), userID, id); err != nil {
			writeServiceError(w, err)
			return
		}
		s.invalidateSummary(userID, tx.Date)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type budgetRequest struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

type budgetResponse struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		b, err := s.budgets.Get(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if b == nil {
			writeError(w, http.StatusNotFound, "no budget set")
			return
		}
		writeJSON(w, http.StatusOK, budgetResponse{Min: b.Min.String(), Max: b.Max.String()})

	case http.MethodPut, http.MethodPost:
		var req budgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		min, err := decimal.NewFromString(strings.TrimSpace(req.Min))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid minimum budget")
			return
		}
		max, err := decimal.NewFromString(strings.TrimSpace(req.Max))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid maximum budget")
			return
		}

		if err := s.budgets.Save(r.Context(), userID, core.Budget{Min: min, Max: max}); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, budgetResponse{Min: min.String(), Max: max.String()})

	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status, err := s.budgets.Status(r.Context(), userID, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type achievementResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Type        string `json:"type"`
	Threshold   int    `json:"threshold"`
	Earned      bool   `json:"earned"`
	DateEarned  string `json:"date_earned,omitempty"`
}

func toAchievementResponse(st services.AchievementStatus) achievementResponse {
	return achievementResponse{
		Name:        st.Definition.Name,
		Description: st.Definition.Description,
		Icon:        st.Definition.Icon,
		Type:        string(st.Definition.Type),
		Threshold:   st.Definition.Threshold,
		Earned:      st.State.Earned,
		DateEarned:  st.State.DateEarned,
	}
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	progress, err := s.achievements.Progress(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Achievement progress failed", "user_id", userID, "error", err)
		writeServiceError(w, err)
		return
	}
	out := make([]achievementResponse, 0, len(progress))
	for _, st := range progress {
		out = append(out, toAchievementResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

type earnedResponse struct {
	Name       string `json:"name"`
	DateEarned string `json:"date_earned"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	earned, err := s.achievements.Evaluate(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Evaluation failed", "user_id", userID, "error", err)
		writeServiceError(w, err)
		return
	}
	out := make([]earnedResponse, 0, len(earned))
	for _, st := range earned {
		out = append(out, earnedResponse{Name: st.Name, DateEarned: st.DateEarned})
	}
	writeJSON(w, http.StatusOK, out)
}

type awardRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "missing achievement name")
		return
	}

	earned, err := s.achievements.Award(r.Context(), userID, req.Name)
	if err != nil {
		slog.ErrorContext(r.Context(), "Award failed", "user_id", userID, "achievement", req.Name, "error", err)
		writeServiceError(w, err)
		return
	}
	if earned == nil {
		// Already earned; report the terminal state without re-earning.
		writeJSON(w, http.StatusOK, earnedResponse{Name: req.Name})
		return
	}
	writeJSON(w, http.StatusOK, earnedResponse{Name: earned.Name, DateEarned: earned.DateEarned})
}

type categoryTotalResponse struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

type summaryResponse struct {
	Year         int                     `json:"year"`
	Month        int                     `json:"month"`
	Transactions int                     `json:"transactions"`
	Expenses     string                  `json:"expenses"`
	Income       string                  `json:"income"`
	NetSavings   string                  `json:"net_savings"`
	ByCategory   []categoryTotalResponse `json:"by_category"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	year, month := parseYearMonth(r)

	key := summaryCacheKey(userID, year, month)
	summary, found := s.summaryCache.Get(key)
	if !found {
		var err error
		summary, err = s.transactions.Summary(r.Context(), userID, year, month)
		if err != nil {
			slog.ErrorContext(r.Context(), "Summary failed", "user_id", userID, "error", err)
			writeServiceError(w, err)
			return
		}
		s.summaryCache.Set(key, summary)
	}

	out := summaryResponse{
		Year:         summary.Year,
		Month:        summary.Month,
		Transactions: summary.Transactions,
		Expenses:     summary.Expenses.String(),
		Income:       summary.Income.String(),
		NetSavings:   summary.NetSavings.String(),
		ByCategory:   make([]categoryTotalResponse, 0, len(summary.ByCategory)),
	}
	for _, ct := range summary.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalResponse{Category: ct.Category, Total: ct.Total.String()})
	}
	writeJSON(w, http.StatusOK, out)
}
