package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/payments_engine/internal/money"
)

const (
	// StatusApplied marks a transaction that changed engine state.
	StatusApplied = "applied"
	// StatusIgnored marks a well-formed transaction whose preconditions failed.
	StatusIgnored = "ignored"
)

// Outcome describes what the engine did with one transaction.
type Outcome struct {
	Type       string       `json:"type"`
	Client     uint16       `json:"client"`
	Tx         uint32       `json:"tx"`
	Amount     money.Amount `json:"amount"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Available  money.Amount `json:"available"`
	Held       money.Amount `json:"held"`
	Locked     bool         `json:"locked"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher delivers outcomes to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, outcome Outcome) error
}

// LoggerPublisher writes outcomes to the structured logger at debug level.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish writes the outcome to the logger.
func (p *LoggerPublisher) Publish(ctx context.Context, o Outcome) error {
	if p == nil || p.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("type", o.Type),
		slog.Int("client", int(o.Client)),
		slog.Int64("tx", int64(o.Tx)),
		slog.String("status", o.Status),
	}
	if o.Reason != "" {
		attrs = append(attrs, slog.String("reason", o.Reason))
	}
	p.logger.DebugContext(ctx, "transaction processed", attrs...)
	return nil
}

// Multi fans an outcome out to every publisher and returns the first error.
type Multi []Publisher

// Publish forwards to each publisher in order.
func (m Multi) Publish(ctx context.Context, o Outcome) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}
