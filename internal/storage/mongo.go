package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"expense-coach/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	MessageCollection = "chat_messages"
	ExpenseCollection = "expenses"
)

// MongoStore keeps chat turns and expenses as documents.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type turnDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"created_at"`
}

type expenseDocument struct {
	ID          string          `bson:"_id"`
	UserID      string          `bson:"user_id"`
	Amount      bson.Decimal128 `bson:"amount"`
	Category    string          `bson:"category"`
	Description *string         `bson:"description,omitempty"`
	Date        string          `bson:"date"`
	CreatedAt   time.Time       `bson:"created_at"`
}

// NewMongoStore connects to uri and ensures the per-user indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "expense_coach"
	}
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	index := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}
	for _, name := range []string{MessageCollection, ExpenseCollection} {
		if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("error creating index on %s: %w", name, err)
		}
	}
	return s, nil
}

func (s *MongoStore) CreateTurn(ctx context.Context, turn *models.ChatTurn) error {
	turn.ID = uuid.NewString()
	turn.CreatedAt = time.Now().UTC()
	_, err := s.db.Collection(MessageCollection).InsertOne(ctx, turnDocument{
		ID:        turn.ID,
		UserID:    turn.UserID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		CreatedAt: turn.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("error creating chat turn: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	amount, err := bson.ParseDecimal128(e.Amount.String())
	if err != nil {
		return fmt.Errorf("error encoding amount: %w", err)
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	_, err = s.db.Collection(ExpenseCollection).InsertOne(ctx, expenseDocument{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.DateString(),
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("error creating expense: %w", err)
	}
	return nil
}

func (s *MongoStore) RecentTurns(ctx context.Context, userID string, limit int) ([]models.ChatTurn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Collection(MessageCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching chat turns: %w", err)
	}
	var docs []turnDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding chat turns: %w", err)
	}

	turns := make([]models.ChatTurn, 0, len(docs))
	for _, d := range docs {
		turns = append(turns, models.ChatTurn{
			ID:        d.ID,
			UserID:    d.UserID,
			Role:      models.Role(d.Role),
			Content:   d.Content,
			CreatedAt: d.CreatedAt,
		})
	}
	slices.Reverse(turns)
	return turns, nil
}

func (s *MongoStore) RecentExpenses(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return s.findExpenses(ctx, userID, limit, bson.D{{Key: "created_at", Value: -1}})
}

func (s *MongoStore) ExpensesByDate(ctx context.Context, userID string, limit int) ([]models.Expense, error) {
	return s.findExpenses(ctx, userID, limit, bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}})
}

func (s *MongoStore) findExpenses(ctx context.Context, userID string, limit int, sort bson.D) ([]models.Expense, error) {
	opts := options.Find().SetSort(sort).SetLimit(int64(limit))
	cursor, err := s.db.Collection(ExpenseCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching expenses: %w", err)
	}
	var docs []expenseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding expenses: %w", err)
	}

	expenses := make([]models.Expense, 0, len(docs))
	for _, d := range docs {
		amount, err := decimal.NewFromString(d.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("error decoding amount: %w", err)
		}
		date, err := time.Parse(models.DateLayout, d.Date)
		if err != nil {
			return nil, fmt.Errorf("error decoding date: %w", err)
		}
		expenses = append(expenses, models.Expense{
			ID:          d.ID,
			UserID:      d.UserID,
			Amount:      amount,
			Category:    d.Category,
			Description: d.Description,
			Date:        date,
			CreatedAt:   d.CreatedAt,
		})
	}
	return expenses, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
