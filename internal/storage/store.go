package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"expense-coach/internal/models"
)

// Store is the read/write surface the chat pipeline needs from persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// RecentTurns returns up to limit of the user's most recent chat turns,
	// ordered oldest first.
	RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error)
	// RecentExpenses returns up to limit of the user's most recently created
	// expenses, newest first.
	RecentExpenses(ctx context.Context, userID string, limit int) ([]models.Expense, error)
	// ExpensesByDate returns up to limit of the user's expenses ordered by
	// expense date, newest first.
	ExpensesByDate(ctx context.Context, userID string, limit int) ([]models.Expense, error)

	CreateTurn(ctx context.Context, turn *models.ChatTurn) error
	CreateExpense(ctx context.Context, e *models.Expense) error

	Close() error
}

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Open connects to the store selected by driver.
func Open(ctx context.Context, driver, dsn, database string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	case "mongo":
		return NewMongoStore(ctx, dsn, database)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
