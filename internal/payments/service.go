package payments

import (
	"context"
	"io"
	"log/slog"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/engine"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

// Service feeds records from API callers into one shared engine.
type Service struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewService constructs a payment service around eng.
func NewService(eng *engine.Engine, logger *slog.Logger) *Service {
	return &Service{engine: eng, logger: logger}
}

// Submit decodes and applies a single record.
func (s *Service) Submit(ctx context.Context, record transaction.Record) (engine.Result, error) {
	tx, err := transaction.Parse(record)
	if err != nil {
		return engine.Result{Status: engine.Rejected, Reason: err}, err
	}
	return s.engine.Apply(ctx, tx), nil
}

// SubmitBatch streams a CSV document through the engine. Concurrent batches
// interleave record by record, like independent input sources.
func (s *Service) SubmitBatch(ctx context.Context, r io.Reader) (engine.Summary, error) {
	batch := &batchCounter{Engine: s.engine}
	summary, err := engine.Stream(ctx, r, batch, s.logger)
	return batch.summary.Add(summary), err
}

// batchCounter counts the outcomes of one batch only.
type batchCounter struct {
	*engine.Engine
	summary engine.Summary
}

func (b *batchCounter) Submit(ctx context.Context, tx transaction.Transaction) error {
	switch b.Apply(ctx, tx).Status {
	case engine.Applied:
		b.summary.Applied++
	case engine.Ignored:
		b.summary.Ignored++
	}
	return nil
}

func (b *batchCounter) Stats() engine.Summary { return b.summary }

// Accounts returns every account ordered by client.
func (s *Service) Accounts() []account.Account {
	return s.engine.Accounts()
}

// Account returns one account.
func (s *Service) Account(client transaction.ClientID) (account.Account, bool) {
	return s.engine.Account(client)
}
