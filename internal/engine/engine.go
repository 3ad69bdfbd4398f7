package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/events"
	"github.com/congo-pay/payments_engine/internal/ledger"
	"github.com/congo-pay/payments_engine/internal/logging"
	"github.com/congo-pay/payments_engine/internal/money"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

// ErrClientMismatch indicates a dispute-family record names a client other than
// the owner of the referenced deposit.
var ErrClientMismatch = errors.New("transaction belongs to another client")

// Status classifies the outcome of one record.
type Status uint8

const (
	Applied Status = iota + 1
	Ignored
	Rejected
)

func (s Status) String() string {
	switch s {
	case Applied:
		return events.StatusApplied
	case Ignored:
		return events.StatusIgnored
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result reports what Apply did. Reason is set for ignored transactions and is
// one of the sentinel errors of the ledger, account or engine packages.
type Result struct {
	Transaction transaction.Transaction
	Status      Status
	Reason      error
	Account     account.Account
}

// Summary counts outcomes over a stream.
type Summary struct {
	Applied  int `json:"applied"`
	Ignored  int `json:"ignored"`
	Rejected int `json:"rejected"`
}

// Add returns the element-wise sum.
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Applied:  s.Applied + o.Applied,
		Ignored:  s.Ignored + o.Ignored,
		Rejected: s.Rejected + o.Rejected,
	}
}

// Engine applies transactions to an account store and a transaction ledger.
// All mutations happen under one lock, in call order.
type Engine struct {
	mu        sync.Mutex
	accounts  *account.Store
	ledger    ledger.Ledger
	publisher events.Publisher
	logger    *slog.Logger
	stats     Summary
	now       func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithLedger replaces the default in-memory ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithPublisher sends every outcome to p. Publish runs under the engine lock and
// must not call back into the engine.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger used for ignored transactions and publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an engine with empty state.
func New(opts ...Option) *Engine {
	e := &Engine{
		accounts: account.NewStore(),
		ledger:   ledger.NewInMemory(),
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply processes one transaction. Failed preconditions never return an error;
// they produce an Ignored result and leave state untouched.
func (e *Engine) Apply(ctx context.Context, tx transaction.Transaction) Result {
	return e.run(ctx, tx, e.apply)
}

// ignoreDuplicate reports tx as a duplicate of a deposit id owned by a client
// outside this engine.
func (e *Engine) ignoreDuplicate(ctx context.Context, tx transaction.Transaction) Result {
	return e.run(ctx, tx, func(_ context.Context, tx transaction.Transaction) (account.Account, error) {
		return e.accounts.GetOrCreate(tx.Client), ledger.ErrDuplicateTransaction
	})
}

// run applies step under the lock. The outcome is published before the lock is
// released so events leave in application order.
func (e *Engine) run(
	ctx context.Context,
	tx transaction.Transaction,
	step func(context.Context, transaction.Transaction) (account.Account, error),
) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := step(ctx, tx)
	res := Result{Transaction: tx, Status: Applied, Account: acc}
	if err != nil {
		res.Status = Ignored
		res.Reason = err
		e.stats.Ignored++
		e.logger.DebugContext(ctx, "transaction ignored", "tx", uint32(tx.Tx), "client", uint16(tx.Client), "type", tx.Type.String(), "reason", err)
	} else {
		e.stats.Applied++
	}
	e.publish(ctx, res)
	return res
}

// Submit applies tx synchronously.
func (e *Engine) Submit(ctx context.Context, tx transaction.Transaction) error {
	e.Apply(ctx, tx)
	return nil
}

// Stats returns the applied and ignored counters.
func (e *Engine) Stats() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Accounts returns a snapshot of every account ordered by client.
func (e *Engine) Accounts() []account.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts.Snapshot()
}

// Account returns one client's account.
func (e *Engine) Account(client transaction.ClientID) (account.Account, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accounts.Get(client)
}

func (e *Engine) apply(ctx context.Context, tx transaction.Transaction) (account.Account, error) {
	switch tx.Type {
	case transaction.Deposit:
		return e.deposit(ctx, tx)
	case transaction.Withdrawal:
		return e.withdraw(ctx, tx)
	case transaction.Dispute:
		return e.settle(ctx, tx, ledger.Entry.Dispute, account.Account.Hold)
	case transaction.Resolve:
		return e.settle(ctx, tx, ledger.Entry.Resolve, account.Account.Release)
	case transaction.Chargeback:
		return e.settle(ctx, tx, ledger.Entry.Chargeback, account.Account.Reverse)
	default:
		return account.Account{}, fmt.Errorf("%w: %s", transaction.ErrUnknownType, tx.Type)
	}
}

func (e *Engine) deposit(ctx context.Context, tx transaction.Transaction) (account.Account, error) {
	acc := e.accounts.GetOrCreate(tx.Client)
	if e.ledger.Contains(ctx, tx.Tx) {
		return acc, ledger.ErrDuplicateTransaction
	}
	next, err := acc.Deposit(tx.Amount)
	if err != nil {
		return acc, err
	}
	entry := ledger.Entry{Tx: tx.Tx, Client: tx.Client, Amount: tx.Amount, State: ledger.StateNormal}
	if err := e.ledger.Record(ctx, entry); err != nil {
		return acc, err
	}
	e.accounts.Put(next)
	return next, nil
}

func (e *Engine) withdraw(ctx context.Context, tx transaction.Transaction) (account.Account, error) {
	acc := e.accounts.GetOrCreate(tx.Client)
	if e.ledger.Contains(ctx, tx.Tx) {
		return acc, ledger.ErrDuplicateTransaction
	}
	next, err := acc.Withdraw(tx.Amount)
	if err != nil {
		return acc, err
	}
	e.accounts.Put(next)
	return next, nil
}

// settle runs a dispute-family transition. The amount always comes from the
// recorded deposit, never from the incoming record.
func (e *Engine) settle(
	ctx context.Context,
	tx transaction.Transaction,
	transition func(ledger.Entry) (ledger.Entry, error),
	move func(account.Account, money.Amount) account.Account,
) (account.Account, error) {
	acc := e.accounts.GetOrCreate(tx.Client)
	entry, err := e.ledger.Get(ctx, tx.Tx)
	if err != nil {
		return acc, err
	}
	if entry.Client != tx.Client {
		return acc, ErrClientMismatch
	}
	next, err := transition(entry)
	if err != nil {
		return acc, err
	}
	if err := e.ledger.Update(ctx, next); err != nil {
		return acc, err
	}
	acc = move(acc, entry.Amount)
	e.accounts.Put(acc)
	return acc, nil
}

func (e *Engine) publish(ctx context.Context, res Result) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, outcome(res, e.now())); err != nil {
		e.logger.WarnContext(ctx, "publish outcome", "tx", uint32(res.Transaction.Tx), "error", err)
	}
}

func outcome(res Result, at time.Time) events.Outcome {
	o := events.Outcome{
		Type:       res.Transaction.Type.String(),
		Client:     uint16(res.Transaction.Client),
		Tx:         uint32(res.Transaction.Tx),
		Amount:     res.Transaction.Amount,
		Status:     res.Status.String(),
		Available:  res.Account.Available,
		Held:       res.Account.Held,
		Locked:     res.Account.Locked,
		OccurredAt: at.UTC(),
	}
	if res.Reason != nil {
		o.Reason = res.Reason.Error()
	}
	return o
}
