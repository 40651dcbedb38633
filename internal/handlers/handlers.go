package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"expense-coach/internal/chat"
	"expense-coach/internal/completion"
	"expense-coach/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// MessageHistoryLimit is how many turns the history endpoint returns.
	MessageHistoryLimit = 50
	// ExpenseListLimit is how many expenses the expense list returns.
	ExpenseListLimit = 10

	maxBodyBytes = 64 << 10
)

// MessageHandler runs the chat pipeline for one message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, message string) (chat.Result, error)
}

// Reader is the read side of the store used by the listing endpoints.
type Reader interface {
	RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error)
	ExpensesByDate(ctx context.Context, userID string, limit int) ([]models.Expense, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	chat      MessageHandler
	reader    Reader
	jwtSecret []byte
	issuer    string
	log       *zap.Logger
}

// NewHandlers creates a new Handlers instance. Tokens must be HS256-signed
// with jwtSecret and, when issuer is set, carry that issuer.
func NewHandlers(svc MessageHandler, reader Reader, jwtSecret, issuer string, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{chat: svc, reader: reader, jwtSecret: []byte(jwtSecret), issuer: issuer, log: log}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Message string                 `json:"message"`
	Expense *models.ExpensePayload `json:"expense"`
}

// ExpenseListResponse is the body of GET /api/expenses.
type ExpenseListResponse struct {
	Expenses []models.Expense `json:"expenses"`
	Total    decimal.Decimal  `json:"total"`
}

// Chat handles one conversational message.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, chat.ErrAuthentication.Error())
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := h.chat.HandleMessage(r.Context(), claims.Subject, req.Message)
	if err != nil {
		h.log.Error("Error in chat handler", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, statusFor(err), messageFor(err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Message: res.Reply, Expense: res.Expense})
}

// ListMessages returns the user's conversation, oldest first.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, chat.ErrAuthentication.Error())
		return
	}

	turns, err := h.reader.RecentTurns(r.Context(), claims.Subject, MessageHistoryLimit)
	if err != nil {
		h.log.Error("ListMessages error", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// ListExpenses returns the user's latest expenses by date and their total.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, chat.ErrAuthentication.Error())
		return
	}

	expenses, err := h.reader.ExpensesByDate(r.Context(), claims.Subject, ExpenseListLimit)
	if err != nil {
		h.log.Error("ListExpenses error", zap.String("user_id", claims.Subject), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	writeJSON(w, http.StatusOK, ExpenseListResponse{Expenses: expenses, Total: total})
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the error text shown to clients. Store and other
// internal failures are reported generically.
func messageFor(err error) string {
	switch {
	case errors.Is(err, chat.ErrAuthentication),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, completion.ErrUpstream):
		return err.Error()
	default:
		return "Internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
