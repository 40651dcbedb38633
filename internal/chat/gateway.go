package chat

import (
	"context"
	"fmt"

	"expense-coach/internal/models"

	"go.uber.org/zap"
)

// Step names one of the three writes made per message.
type Step string

const (
	StepUserTurn      Step = "user_turn"
	StepExpense       Step = "expense"
	StepAssistantTurn Step = "assistant_turn"
)

// WriteResult is the outcome of a single write. Err wraps ErrPersistenceWrite.
type WriteResult struct {
	Step Step
	ID   string
	Err  error
}

// Writer is the insert path of the store.
type Writer interface {
	CreateTurn(ctx context.Context, turn *models.ChatTurn) error
	CreateExpense(ctx context.Context, e *models.Expense) error
}

// Gateway performs the independent, non-transactional writes for a message.
// A failed write is logged and returned; it never prevents the next one.
type Gateway struct {
	writer Writer
	log    *zap.Logger
}

func NewGateway(writer Writer, log *zap.Logger) *Gateway {
	return &Gateway{writer: writer, log: log}
}

func (g *Gateway) SaveUserTurn(ctx context.Context, userID, text string) WriteResult {
	return g.saveTurn(ctx, StepUserTurn, userID, models.RoleUser, text)
}

func (g *Gateway) SaveAssistantTurn(ctx context.Context, userID, text string) WriteResult {
	return g.saveTurn(ctx, StepAssistantTurn, userID, models.RoleAssistant, text)
}

func (g *Gateway) saveTurn(ctx context.Context, step Step, userID string, role models.Role, text string) WriteResult {
	turn := &models.ChatTurn{UserID: userID, Role: role, Content: text}
	if err := g.writer.CreateTurn(ctx, turn); err != nil {
		return g.failed(step, userID, err)
	}
	return WriteResult{Step: step, ID: turn.ID}
}

func (g *Gateway) SaveExpense(ctx context.Context, userID string, payload models.ExpensePayload) WriteResult {
	expense, err := payload.ToExpense(userID)
	if err != nil {
		return g.failed(StepExpense, userID, err)
	}
	if err := g.writer.CreateExpense(ctx, &expense); err != nil {
		return g.failed(StepExpense, userID, err)
	}
	g.log.Info("Expense saved",
		zap.String("user_id", userID),
		zap.String("expense_id", expense.ID),
		zap.Stringer("amount", expense.Amount),
		zap.String("category", expense.Category))
	return WriteResult{Step: StepExpense, ID: expense.ID}
}

func (g *Gateway) failed(step Step, userID string, err error) WriteResult {
	wrapped := fmt.Errorf("%w: %s: %w", ErrPersistenceWrite, step, err)
	g.log.Error("persistence write failed",
		zap.String("step", string(step)),
		zap.String("user_id", userID),
		zap.Error(err))
	return WriteResult{Step: step, Err: wrapped}
}
