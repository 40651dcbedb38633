package storage

import (
	"context"
	"fmt"
	"time"

	"expense-coach/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps chat turns and expenses in Postgres.
// A pgx pool lets concurrent requests reuse a bounded set of connections.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connStr and applies pending migrations.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	// goose speaks database/sql; the wrapper shares the pool's connections.
	if err := runMigrations(ctx, goose.DialectPostgres, stdlib.OpenDBFromPool(pool), "migrations/postgres"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) CreateTurn(ctx context.Context, turn *models.ChatTurn) error {
	turn.ID = uuid.NewString()
	query := `
		INSERT INTO chat_messages (id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at;
	`
	err := p.pool.QueryRow(ctx, query, turn.ID, turn.UserID, string(turn.Role), turn.Content).Scan(&turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat turn: %w", err)
	}
	return nil
}

func (p *PostgresStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	e.ID = uuid.NewString()
	query := `
		INSERT INTO expenses (id, user_id, amount, category, description, date)
		VALUES ($1, $2, $3::numeric, $4, $5, $6::date)
		RETURNING created_at;
	`
	err := p.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.Amount.String(), e.Category, e.Description, e.DateString(),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (p *PostgresStore) RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	query := `
		SELECT id::text, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC;
	`
	rows, err := p.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat turns for user %s: %w", userID, err)
	}
	defer rows.Close()

	turns := []models.ChatTurn{}
	for rows.Next() {
		var t models.ChatTurn
		var role string
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (p *PostgresStore) RecentExpenses(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return p.listExpenses(ctx, "ORDER BY created_at DESC", userID, limit)
}

func (p *PostgresStore) ExpensesByDate(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return p.listExpenses(ctx, "ORDER BY date DESC, created_at DESC", userID, limit)
}

func (p *PostgresStore) listExpenses(ctx context.Context, order, userID string, limit int) ([]models.Expense, error) {
	query := `
		SELECT id::text, user_id, amount::text, category, description, date, created_at
		FROM expenses
		WHERE user_id = $1
		` + order + `
		LIMIT $2;
	`
	rows, err := p.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses for user %s: %w", userID, err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var amount string
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Category, &e.Description, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
