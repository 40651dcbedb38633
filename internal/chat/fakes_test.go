package chat

import (
	"context"
	"errors"
	"sync"

	"expense-coach/internal/completion"
	"expense-coach/internal/models"
)

var errBoom = errors.New("boom")

// memStore is an in-memory Store with per-operation failure switches.
type memStore struct {
	mu       sync.Mutex
	turns    []models.ChatTurn
	expenses []models.Expense
	seq      int

	failTurnsRead    bool
	failExpensesRead bool
	failRoles        map[models.Role]bool
	failExpense      bool
}

func (m *memStore) RecentTurns(_ context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTurnsRead {
		return nil, errBoom
	}
	var mine []models.ChatTurn
	for _, t := range m.turns {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	if len(mine) > limit {
		mine = mine[len(mine)-limit:]
	}
	return mine, nil
}

func (m *memStore) RecentExpenses(_ context.Context, userID string, limit int) ([]models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExpensesRead {
		return nil, errBoom
	}
	var mine []models.Expense
	for i := len(m.expenses) - 1; i >= 0 && len(mine) < limit; i-- {
		if m.expenses[i].UserID == userID {
			mine = append(mine, m.expenses[i])
		}
	}
	return mine, nil
}

func (m *memStore) CreateTurn(_ context.Context, turn *models.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRoles[turn.Role] {
		return errBoom
	}
	m.seq++
	turn.ID = string(rune('A' + m.seq))
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memStore) CreateExpense(_ context.Context, e *models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExpense {
		return errBoom
	}
	m.seq++
	e.ID = string(rune('A' + m.seq))
	m.expenses = append(m.expenses, *e)
	return nil
}

// scriptedCompleter returns a fixed reply or error and records its input.
type scriptedCompleter struct {
	reply    string
	err      error
	calls    int
	system   string
	messages []completion.Message
}

func (c *scriptedCompleter) Complete(_ context.Context, system string, messages []completion.Message) (string, error) {
	c.calls++
	c.system = system
	c.messages = messages
	return c.reply, c.err
}
