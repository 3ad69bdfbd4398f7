package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/events"
	"github.com/congo-pay/payments_engine/internal/ledger"
	"github.com/congo-pay/payments_engine/internal/money"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

func deposit(client transaction.ClientID, tx transaction.ID, amount string) transaction.Transaction {
	return transaction.Transaction{Type: transaction.Deposit, Client: client, Tx: tx, Amount: money.MustParse(amount)}
}

func withdrawal(client transaction.ClientID, tx transaction.ID, amount string) transaction.Transaction {
	return transaction.Transaction{Type: transaction.Withdrawal, Client: client, Tx: tx, Amount: money.MustParse(amount)}
}

func ref(typ transaction.Type, client transaction.ClientID, tx transaction.ID) transaction.Transaction {
	return transaction.Transaction{Type: typ, Client: client, Tx: tx}
}

func requireBalances(t *testing.T, e *Engine, client transaction.ClientID, available, held, total string, locked bool) {
	t.Helper()
	acc, ok := e.Account(client)
	require.True(t, ok, "account %d missing", client)
	assert.Equal(t, available, acc.Available.String(), "available")
	assert.Equal(t, held, acc.Held.String(), "held")
	assert.Equal(t, total, acc.Total().String(), "total")
	assert.Equal(t, locked, acc.Locked, "locked")
}

func TestDisputeAfterWithdrawalThenChargeback(t *testing.T) {
	e := New()
	ctx := context.Background()

	require.Equal(t, Applied, e.Apply(ctx, deposit(1, 1, "5.0")).Status)
	requireBalances(t, e, 1, "5.0000", "0.0000", "5.0000", false)

	require.Equal(t, Applied, e.Apply(ctx, withdrawal(1, 2, "3.0")).Status)
	requireBalances(t, e, 1, "2.0000", "0.0000", "2.0000", false)

	// Available goes negative: the disputed funds already left through tx 2.
	require.Equal(t, Applied, e.Apply(ctx, ref(transaction.Dispute, 1, 1)).Status)
	requireBalances(t, e, 1, "-3.0000", "5.0000", "2.0000", false)

	require.Equal(t, Applied, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)).Status)
	requireBalances(t, e, 1, "-3.0000", "0.0000", "-3.0000", true)
}

func TestDisputeResolveRestoresBalances(t *testing.T) {
	e := New()
	ctx := context.Background()

	e.Apply(ctx, deposit(1, 1, "10.1234"))
	e.Apply(ctx, deposit(1, 2, "0.0001"))
	before, _ := e.Account(1)

	e.Apply(ctx, ref(transaction.Dispute, 1, 1))
	requireBalances(t, e, 1, "0.0001", "10.1234", "10.1235", false)

	e.Apply(ctx, ref(transaction.Resolve, 1, 1))
	after, _ := e.Account(1)
	assert.True(t, before.Available.Equal(after.Available))
	assert.True(t, before.Held.Equal(after.Held))

	// A resolved deposit can be disputed again.
	assert.Equal(t, Applied, e.Apply(ctx, ref(transaction.Dispute, 1, 1)).Status)
}

func TestIgnoredTransactions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		setup  []transaction.Transaction
		tx     transaction.Transaction
		reason error
	}{
		{"withdrawal over available", []transaction.Transaction{deposit(1, 1, "1")}, withdrawal(1, 2, "1.0001"), account.ErrInsufficientFunds},
		{"withdrawal from new client", nil, withdrawal(1, 2, "1"), account.ErrInsufficientFunds},
		{"duplicate deposit id", []transaction.Transaction{deposit(1, 1, "1")}, deposit(2, 1, "3"), ledger.ErrDuplicateTransaction},
		{"withdrawal reusing deposit id", []transaction.Transaction{deposit(1, 1, "5")}, withdrawal(1, 1, "1"), ledger.ErrDuplicateTransaction},
		{"dispute unknown tx", []transaction.Transaction{deposit(1, 1, "1")}, ref(transaction.Dispute, 1, 9), ledger.ErrTransactionNotFound},
		{"dispute other client's tx", []transaction.Transaction{deposit(1, 1, "1"), deposit(2, 2, "1")}, ref(transaction.Dispute, 2, 1), ErrClientMismatch},
		{"dispute twice", []transaction.Transaction{deposit(1, 1, "1"), ref(transaction.Dispute, 1, 1)}, ref(transaction.Dispute, 1, 1), ledger.ErrAlreadyDisputed},
		{"dispute a withdrawal", []transaction.Transaction{deposit(1, 1, "5"), withdrawal(1, 2, "1")}, ref(transaction.Dispute, 1, 2), ledger.ErrTransactionNotFound},
		{"resolve undisputed", []transaction.Transaction{deposit(1, 1, "1")}, ref(transaction.Resolve, 1, 1), ledger.ErrNotDisputed},
		{"resolve unknown tx", []transaction.Transaction{deposit(1, 1, "1")}, ref(transaction.Resolve, 1, 42), ledger.ErrTransactionNotFound},
		{"chargeback undisputed", []transaction.Transaction{deposit(1, 1, "1")}, ref(transaction.Chargeback, 1, 1), ledger.ErrNotDisputed},
		{"dispute after chargeback", []transaction.Transaction{deposit(1, 1, "1"), ref(transaction.Dispute, 1, 1), ref(transaction.Chargeback, 1, 1)}, ref(transaction.Dispute, 1, 1), ledger.ErrChargedBack},
		{"deposit on locked account", []transaction.Transaction{deposit(1, 1, "1"), ref(transaction.Dispute, 1, 1), ref(transaction.Chargeback, 1, 1)}, deposit(1, 2, "1"), account.ErrAccountLocked},
		{"withdrawal on locked account", []transaction.Transaction{deposit(1, 1, "1"), deposit(1, 2, "4"), ref(transaction.Dispute, 1, 1), ref(transaction.Chargeback, 1, 1)}, withdrawal(1, 3, "1"), account.ErrAccountLocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New()
			for _, tx := range tc.setup {
				require.Equal(t, Applied, e.Apply(ctx, tx).Status, "setup %s", tx)
			}
			before := e.Accounts()

			res := e.Apply(ctx, tc.tx)
			assert.Equal(t, Ignored, res.Status)
			assert.ErrorIs(t, res.Reason, tc.reason)

			after := e.Accounts()
			// Ignored transactions may only lazily create an empty account.
			for _, acc := range after {
				if prev, ok := find(before, acc.Client); ok {
					assert.Equal(t, prev.Available.String(), acc.Available.String())
					assert.Equal(t, prev.Held.String(), acc.Held.String())
					assert.Equal(t, prev.Locked, acc.Locked)
				} else {
					assert.True(t, acc.Total().IsZero())
				}
			}
		})
	}
}

func TestLockedAccountStillUnwindsDisputes(t *testing.T) {
	e := New()
	ctx := context.Background()

	e.Apply(ctx, deposit(1, 1, "2"))
	e.Apply(ctx, deposit(1, 2, "3"))
	e.Apply(ctx, ref(transaction.Dispute, 1, 1))
	e.Apply(ctx, ref(transaction.Dispute, 1, 2))
	e.Apply(ctx, ref(transaction.Chargeback, 1, 1))
	requireBalances(t, e, 1, "0.0000", "3.0000", "3.0000", true)

	assert.Equal(t, Applied, e.Apply(ctx, ref(transaction.Resolve, 1, 2)).Status)
	requireBalances(t, e, 1, "3.0000", "0.0000", "3.0000", true)
}

func TestResolveUnknownTxForExistingClient(t *testing.T) {
	e := New()
	ctx := context.Background()
	e.Apply(ctx, deposit(1, 1, "1.5"))

	res := e.Apply(ctx, ref(transaction.Resolve, 1, 77))
	assert.Equal(t, Ignored, res.Status)
	requireBalances(t, e, 1, "1.5000", "0.0000", "1.5000", false)
}

func TestStatsAndPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(WithPublisher(pub))
	ctx := context.Background()

	e.Apply(ctx, deposit(1, 1, "1"))
	e.Apply(ctx, withdrawal(1, 2, "5"))

	assert.Equal(t, Summary{Applied: 1, Ignored: 1}, e.Stats())
	require.Len(t, pub.got, 2)
	assert.Equal(t, events.StatusApplied, pub.got[0].Status)
	assert.Equal(t, "1.0000", pub.got[0].Available.String())
	assert.Equal(t, events.StatusIgnored, pub.got[1].Status)
	assert.Equal(t, account.ErrInsufficientFunds.Error(), pub.got[1].Reason)
}

func TestPublishFailureDoesNotAffectOutcome(t *testing.T) {
	e := New(WithPublisher(&recordingPublisher{err: errors.New("down")}))
	res := e.Apply(context.Background(), deposit(1, 1, "1"))
	assert.Equal(t, Applied, res.Status)
}

func TestRandomStreamKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := New()
	ctx := context.Background()

	amounts := []string{"0.0001", "1", "2.5", "10", "99.9999"}
	types := []transaction.Type{
		transaction.Deposit, transaction.Withdrawal, transaction.Dispute,
		transaction.Resolve, transaction.Chargeback,
	}
	for i := 1; i <= 2000; i++ {
		tx := transaction.Transaction{
			Type:   types[rng.Intn(len(types))],
			Client: transaction.ClientID(rng.Intn(5)),
			Tx:     transaction.ID(i),
		}
		if tx.Type.HasAmount() {
			tx.Amount = money.MustParse(amounts[rng.Intn(len(amounts))])
		} else {
			tx.Tx = transaction.ID(rng.Intn(i) + 1)
		}
		before, _ := e.Account(tx.Client)

		res := e.Apply(ctx, tx)

		acc, ok := e.Account(tx.Client)
		require.True(t, ok)
		assert.False(t, acc.Held.IsNegative(), "held negative after %s", tx)
		assert.True(t, acc.Total().Equal(acc.Available.Add(acc.Held)))
		if tx.Type == transaction.Withdrawal && res.Status == Applied {
			assert.False(t, acc.Available.IsNegative(), "withdrawal overdrew after %s", tx)
		}
		if before.Locked && tx.Type.HasAmount() {
			assert.Equal(t, Ignored, res.Status)
			assert.True(t, before.Available.Equal(acc.Available))
		}
	}
}

type recordingPublisher struct {
	got []events.Outcome
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, o events.Outcome) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, o)
	return nil
}

func find(accounts []account.Account, client transaction.ClientID) (account.Account, bool) {
	for _, acc := range accounts {
		if acc.Client == client {
			return acc, true
		}
	}
	return account.Account{}, false
}

// blockingPublisher holds the first Publish call until release is closed.
type blockingPublisher struct {
	mu      sync.Mutex
	order   []transaction.ID
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingPublisher) Publish(_ context.Context, o events.Outcome) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	p.mu.Lock()
	p.order = append(p.order, transaction.ID(o.Tx))
	p.mu.Unlock()
	return nil
}

func TestOutcomesPublishedInApplyOrder(t *testing.T) {
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	e := New(WithPublisher(pub))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.Apply(ctx, deposit(1, 1, "5"))
	}()
	<-pub.entered

	go func() {
		defer wg.Done()
		e.Apply(ctx, withdrawal(1, 2, "2"))
	}()
	time.Sleep(20 * time.Millisecond)
	close(pub.release)
	wg.Wait()

	assert.Equal(t, []transaction.ID{1, 2}, pub.order)
	requireBalances(t, e, 1, "3.0000", "0.0000", "3.0000", false)
}
