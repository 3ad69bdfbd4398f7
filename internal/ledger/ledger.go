package ledger

import (
	"context"
	"errors"

	"github.com/congo-pay/payments_engine/internal/money"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

var (
	// ErrDuplicateTransaction indicates the transaction identifier is already recorded.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionNotFound indicates no deposit was recorded under the identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadyDisputed is returned when disputing an entry that is under dispute.
	ErrAlreadyDisputed = errors.New("transaction already disputed")

	// ErrNotDisputed is returned when resolving or charging back an undisputed entry.
	ErrNotDisputed = errors.New("transaction not disputed")

	// ErrChargedBack is returned for any transition out of the terminal state.
	ErrChargedBack = errors.New("transaction charged back")
)

// State is the dispute status of a recorded deposit.
type State uint8

const (
	StateNormal State = iota
	StateDisputed
	StateChargedBack
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateDisputed:
		return "disputed"
	case StateChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

// Entry is a deposit retained for later dispute.
type Entry struct {
	Tx     transaction.ID
	Client transaction.ClientID
	Amount money.Amount
	State  State
}

// Dispute moves a normal entry under dispute.
func (e Entry) Dispute() (Entry, error) {
	switch e.State {
	case StateNormal:
		e.State = StateDisputed
		return e, nil
	case StateDisputed:
		return e, ErrAlreadyDisputed
	default:
		return e, ErrChargedBack
	}
}

// Resolve returns a disputed entry to normal.
func (e Entry) Resolve() (Entry, error) {
	switch e.State {
	case StateDisputed:
		e.State = StateNormal
		return e, nil
	case StateNormal:
		return e, ErrNotDisputed
	default:
		return e, ErrChargedBack
	}
}

// Chargeback finalises a disputed entry.
func (e Entry) Chargeback() (Entry, error) {
	switch e.State {
	case StateDisputed:
		e.State = StateChargedBack
		return e, nil
	case StateNormal:
		return e, ErrNotDisputed
	default:
		return e, ErrChargedBack
	}
}

// Ledger defines the contract implemented by transaction history backends.
type Ledger interface {
	// Record stores a new entry. It fails with ErrDuplicateTransaction if the id is taken.
	Record(ctx context.Context, entry Entry) error
	// Get returns the entry for id or ErrTransactionNotFound.
	Get(ctx context.Context, id transaction.ID) (Entry, error)
	// Update replaces an existing entry.
	Update(ctx context.Context, entry Entry) error
	// Contains reports whether id is recorded.
	Contains(ctx context.Context, id transaction.ID) bool
	// Len returns the number of recorded entries.
	Len() int
}
