package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

// Processor is implemented by Engine and Sharded.
type Processor interface {
	Submit(ctx context.Context, tx transaction.Transaction) error
	Stats() Summary
	Accounts() []account.Account
	Account(client transaction.ClientID) (account.Account, bool)
}

var (
	_ Processor = (*Engine)(nil)
	_ Processor = (*Sharded)(nil)
)

// Stream decodes CSV from r and submits every valid record to p in order.
// Malformed rows are logged and counted as rejected; the returned summary only
// counts rejections; applied and ignored totals come from p.Stats once p has
// drained.
func Stream(ctx context.Context, r io.Reader, p Processor, logger *slog.Logger) (Summary, error) {
	var summary Summary

	dec, err := transaction.NewDecoder(r)
	if err != nil {
		return summary, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		tx, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		var derr *transaction.DecodeError
		if errors.As(err, &derr) {
			summary.Rejected++
			logger.WarnContext(ctx, "transaction rejected", "line", derr.Line, "error", derr.Err)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("read transactions: %w", err)
		}

		if err := p.Submit(ctx, tx); err != nil {
			return summary, fmt.Errorf("submit tx %d: %w", tx.Tx, err)
		}
	}
}
