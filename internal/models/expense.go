package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the calendar date format used for expense dates.
const DateLayout = "2006-01-02"

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in a user's conversation.
type ChatTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Expense represents a persisted expense record.
type Expense struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DateString returns the expense date as YYYY-MM-DD.
func (e Expense) DateString() string {
	return e.Date.Format(DateLayout)
}

// ExpensePayload is the structured expense the model embeds in its reply.
type ExpensePayload struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description"`
	Date        string          `json:"date"`
}

// ToExpense builds an unsaved expense record for userID from the payload.
func (p ExpensePayload) ToExpense(userID string) (Expense, error) {
	date, err := time.Parse(DateLayout, p.Date)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		UserID:      userID,
		Amount:      p.Amount,
		Category:    p.Category,
		Description: p.Description,
		Date:        date,
	}, nil
}
