package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"expense-coach/internal/models"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore wraps a sql.DB connection to a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	now  func() time.Time
}

// NewSQLiteStore opens a database connection and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives and dies with its connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &SQLiteStore{conn: conn, now: time.Now}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return db, nil
}

func (db *SQLiteStore) migrate(ctx context.Context) error {
	return runMigrations(ctx, goose.DialectSQLite3, db.conn, "migrations/sqlite")
}

func runMigrations(ctx context.Context, dialect goose.Dialect, conn *sql.DB, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, conn, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// CreateTurn inserts a chat turn, assigning its ID and creation time.
func (db *SQLiteStore) CreateTurn(ctx context.Context, turn *models.ChatTurn) error {
	turn.ID = uuid.NewString()
	turn.CreatedAt = db.now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO chat_messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		turn.ID, turn.UserID, string(turn.Role), turn.Content, turn.CreatedAt.Format(timestampLayout),
	)
	return err
}

// CreateExpense inserts an expense, assigning its ID and creation time.
func (db *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.Date.IsZero() {
		e.Date = db.now()
	}
	e.ID = uuid.NewString()
	e.CreatedAt = db.now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (id, user_id, amount, category, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.UserID, e.Amount.String(), e.Category, e.Description, e.DateString(), e.CreatedAt.Format(timestampLayout),
	)
	return err
}

// RecentTurns returns the user's latest turns, oldest first.
func (db *SQLiteStore) RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT rowid AS seq, id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY created_at ASC, seq ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []models.ChatTurn{}
	for rows.Next() {
		var (
			t       models.ChatTurn
			role    string
			created string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.Role = models.Role(role)
		if t.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// RecentExpenses returns the user's most recently created expenses.
func (db *SQLiteStore) RecentExpenses(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return db.listExpenses(ctx,
		"WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", userID, limit)
}

// ExpensesByDate returns the user's expenses with the latest dates first.
func (db *SQLiteStore) ExpensesByDate(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return db.listExpenses(ctx,
		"WHERE user_id = ? ORDER BY date DESC, created_at DESC LIMIT ?", userID, limit)
}

func (db *SQLiteStore) listExpenses(ctx context.Context, clause string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, user_id, amount, category, description, date, created_at FROM expenses "+clause,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		var amount, date, created string
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Category, &description, &date, &created); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		if description.Valid {
			e.Description = &description.String
		}
		if e.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timestampLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// Close closes the database connection.
func (db *SQLiteStore) Close() error {
	return db.conn.Close()
}
