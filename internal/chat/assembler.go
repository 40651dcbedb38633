package chat

import (
	"context"
	"fmt"
	"strings"

	"expense-coach/internal/completion"
	"expense-coach/internal/models"
)

const (
	// HistoryLimit is how many prior turns are sent to the model.
	HistoryLimit = 10
	// ExpenseLimit is how many recent expenses are summarised for the model.
	ExpenseLimit = 20
)

const systemInstruction = `You are a friendly Personal Savings Coach assistant. Your job is to help users track their daily expenses and provide personalized savings advice.

When users tell you about expenses, extract:
1. Amount (as a number, e.g., 50.00)
2. Category (e.g., "food", "transport", "entertainment", "bills", "shopping", "healthcare", etc.)
3. Description (optional details)
4. Date (default to today if not specified)

After extracting expense information, respond with a JSON object in this format:
{
  "type": "expense",
  "amount": 50.00,
  "category": "food",
  "description": "lunch at cafe",
  "date": "2024-01-15"
}

For other conversations about budgeting, savings tips, or financial advice, respond normally with helpful, encouraging advice.

Be conversational, friendly, and supportive. Celebrate progress and provide actionable savings tips.`

// HistoryReader is the read path of the store used to build context.
type HistoryReader interface {
	RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error)
	RecentExpenses(ctx context.Context, userID string, limit int) ([]models.Expense, error)
}

// Prompt is the model input for one request.
type Prompt struct {
	System   string
	Messages []completion.Message
}

// Assembler builds the model input from a user's history and expenses.
type Assembler struct {
	reader HistoryReader
}

func NewAssembler(reader HistoryReader) *Assembler {
	return &Assembler{reader: reader}
}

// Assemble reads the user's recent turns and expenses and returns the system
// instruction plus prior turns followed by message.
func (a *Assembler) Assemble(ctx context.Context, userID, message string) (Prompt, error) {
	turns, err := a.reader.RecentTurns(ctx, userID, HistoryLimit)
	if err != nil {
		return Prompt{}, fmt.Errorf("%w: recent turns: %w", ErrContextUnavailable, err)
	}
	expenses, err := a.reader.RecentExpenses(ctx, userID, ExpenseLimit)
	if err != nil {
		return Prompt{}, fmt.Errorf("%w: recent expenses: %w", ErrContextUnavailable, err)
	}
	return BuildPrompt(turns, expenses, message), nil
}

// BuildPrompt is the pure part of Assemble.
func BuildPrompt(turns []models.ChatTurn, expenses []models.Expense, message string) Prompt {
	messages := make([]completion.Message, 0, len(turns)+1)
	for _, t := range turns {
		messages = append(messages, completion.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, completion.Message{Role: string(models.RoleUser), Content: message})

	return Prompt{
		System:   systemInstruction + expenseDigest(expenses),
		Messages: messages,
	}
}

// expenseDigest lists expenses one per line, or returns "" when there are none.
func expenseDigest(expenses []models.Expense) string {
	if len(expenses) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nRecent expenses:")
	for _, e := range expenses {
		fmt.Fprintf(&b, "\n- %s: $%s for %s", e.DateString(), e.Amount.String(), e.Category)
		if e.Description != nil && *e.Description != "" {
			fmt.Fprintf(&b, " (%s)", *e.Description)
		}
	}
	return b.String()
}
