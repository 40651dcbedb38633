package chat

import (
	"fmt"

	"expense-coach/internal/models"
)

// Compose returns the reply shown to the user and stored as the assistant
// turn. A tracked expense replaces the model's wording with a confirmation.
func Compose(raw string, payload *models.ExpensePayload) string {
	if payload == nil {
		return raw
	}
	detail := ""
	if payload.Description != nil && *payload.Description != "" {
		detail = fmt.Sprintf(" (%s)", *payload.Description)
	}
	return fmt.Sprintf("Got it! I've tracked $%s for %s%s. Keep up the great work tracking your expenses! 💰",
		payload.Amount.String(), payload.Category, detail)
}
