package chat

import (
	"context"
	"strings"
	"time"

	"expense-coach/internal/completion"
	"expense-coach/internal/extract"
	"expense-coach/internal/models"

	"go.uber.org/zap"
)

// Completer turns a prompt into raw model text.
type Completer interface {
	Complete(ctx context.Context, system string, messages []completion.Message) (string, error)
}

// Store is everything the pipeline reads and writes.
type Store interface {
	HistoryReader
	Writer
}

// Result is what a handled message produces. Writes lists every attempted
// write in order; failures there do not make HandleMessage fail.
type Result struct {
	Reply   string
	Expense *models.ExpensePayload
	Writes  []WriteResult
}

// Service runs the message pipeline: context, completion, extraction,
// composition and the three writes.
type Service struct {
	assembler *Assembler
	completer Completer
	extractor *extract.Extractor
	gateway   *Gateway
	now       func() time.Time
	log       *zap.Logger
}

func NewService(store Store, completer Completer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		assembler: NewAssembler(store),
		completer: completer,
		extractor: extract.New(log),
		gateway:   NewGateway(store, log),
		now:       time.Now,
		log:       log,
	}
}

// HandleMessage processes one user message. It fails only when no reply can
// be produced (authentication, context read, completion); in those cases
// nothing is written.
func (s *Service) HandleMessage(ctx context.Context, userID, message string) (Result, error) {
	if userID == "" {
		return Result{}, ErrAuthentication
	}
	if strings.TrimSpace(message) == "" {
		return Result{}, ErrEmptyMessage
	}

	prompt, err := s.assembler.Assemble(ctx, userID, message)
	if err != nil {
		s.log.Error("failed to assemble context", zap.String("user_id", userID), zap.Error(err))
		return Result{}, err
	}

	raw, err := s.completer.Complete(ctx, prompt.System, prompt.Messages)
	if err != nil {
		s.log.Error("completion failed", zap.String("user_id", userID), zap.Error(err))
		return Result{}, err
	}

	var expense *models.ExpensePayload
	// Undated expenses are booked on the current UTC date.
	if m, ok := s.extractor.Extract(raw, s.now().UTC()); ok {
		expense = &m.Payload
	}
	reply := Compose(raw, expense)

	// Once a reply exists the writes run to the end regardless of the caller.
	ctx = context.WithoutCancel(ctx)
	writes := []WriteResult{s.gateway.SaveUserTurn(ctx, userID, message)}
	if expense != nil {
		writes = append(writes, s.gateway.SaveExpense(ctx, userID, *expense))
	}
	writes = append(writes, s.gateway.SaveAssistantTurn(ctx, userID, reply))

	return Result{Reply: reply, Expense: expense, Writes: writes}, nil
}
