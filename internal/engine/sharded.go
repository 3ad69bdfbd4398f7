package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("engine closed")

// DefaultQueueSize is the per-shard buffer used when none is configured.
const DefaultQueueSize = 1024

// Sharded spreads clients over independent engines. Each shard consumes an
// ordered queue on its own goroutine, so records of one client are applied in
// submission order while different clients proceed in parallel. Deposit ids are
// claimed at submission, so an id reused across clients is ignored as a
// duplicate whichever shards the clients land on.
type Sharded struct {
	shards []*shard
	ctx    context.Context
	group  *errgroup.Group

	mu     sync.RWMutex
	closed bool

	// owners maps each deposit id to the first client that submitted it.
	ownersMu sync.Mutex
	owners   map[transaction.ID]transaction.ClientID
}

type shard struct {
	engine *Engine
	queue  chan item
}

// item is a queued transaction. duplicate marks a deposit id already claimed by
// another client.
type item struct {
	tx        transaction.Transaction
	duplicate bool
}

// NewSharded starts n shard workers. Workers stop when Close is called or ctx is
// cancelled. Options apply to every shard engine; WithLedger must not be used
// since shards cannot share a ledger.
func NewSharded(ctx context.Context, n, queueSize int, opts ...Option) *Sharded {
	if n < 1 {
		n = 1
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}

	group, gctx := errgroup.WithContext(ctx)
	s := &Sharded{
		shards: make([]*shard, n),
		ctx:    gctx,
		group:  group,
		owners: make(map[transaction.ID]transaction.ClientID),
	}
	for i := range s.shards {
		sh := &shard{engine: New(opts...), queue: make(chan item, queueSize)}
		s.shards[i] = sh
		group.Go(func() error { return sh.run(gctx) })
	}
	return s
}

func (sh *shard) run(ctx context.Context) error {
	for {
		select {
		case it, ok := <-sh.queue:
			if !ok {
				return ctx.Err()
			}
			if it.duplicate {
				sh.engine.ignoreDuplicate(ctx, it.tx)
				continue
			}
			sh.engine.Apply(ctx, it.tx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sharded) shardFor(client transaction.ClientID) *shard {
	return s.shards[int(client)%len(s.shards)]
}

// Submit enqueues tx on its client's shard, blocking while the queue is full.
func (s *Sharded) Submit(ctx context.Context, tx transaction.Transaction) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	it := item{tx: tx, duplicate: s.claimedElsewhere(tx)}
	select {
	case s.shardFor(tx.Client).queue <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// claimedElsewhere reports whether a deposit or withdrawal reuses a deposit id
// first submitted by another client. The first deposit of an id claims it.
// Reuse by the same client stays with that client's shard ledger.
func (s *Sharded) claimedElsewhere(tx transaction.Transaction) bool {
	if !tx.Type.HasAmount() {
		return false
	}
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()

	owner, ok := s.owners[tx.Tx]
	if !ok {
		if tx.Type == transaction.Deposit {
			s.owners[tx.Tx] = tx.Client
		}
		return false
	}
	return owner != tx.Client
}

// Close stops accepting transactions, waits for every queue to drain and
// returns the first worker error.
func (s *Sharded) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for _, sh := range s.shards {
			close(sh.queue)
		}
	}
	s.mu.Unlock()
	return s.group.Wait()
}

// Stats sums the counters of every shard.
func (s *Sharded) Stats() Summary {
	var total Summary
	for _, sh := range s.shards {
		total = total.Add(sh.engine.Stats())
	}
	return total
}

// Accounts merges every shard's accounts ordered by client. Call after Close
// for a final snapshot.
func (s *Sharded) Accounts() []account.Account {
	var out []account.Account
	for _, sh := range s.shards {
		out = append(out, sh.engine.Accounts()...)
	}
	account.SortByClient(out)
	return out
}

// Account returns one client's account from its shard.
func (s *Sharded) Account(client transaction.ClientID) (account.Account, bool) {
	return s.shardFor(client).engine.Account(client)
}
