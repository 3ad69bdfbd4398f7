package account

import (
	"errors"

	"github.com/congo-pay/payments_engine/internal/money"
	"github.com/congo-pay/payments_engine/internal/transaction"
)

var (
	// ErrInsufficientFunds occurs when a withdrawal exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountLocked occurs when depositing to or withdrawing from a frozen account.
	ErrAccountLocked = errors.New("account locked")
)

// Account is the balance state of one client. Total is always derived.
type Account struct {
	Client    transaction.ClientID `json:"client"`
	Available money.Amount         `json:"available"`
	Held      money.Amount         `json:"held"`
	Locked    bool                 `json:"locked"`
}

// Total returns available plus held.
func (a Account) Total() money.Amount {
	return a.Available.Add(a.Held)
}

// Deposit credits available funds.
func (a Account) Deposit(amount money.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	a.Available = a.Available.Add(amount)
	return a, nil
}

// Withdraw debits available funds if they cover the amount.
func (a Account) Withdraw(amount money.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if a.Available.LessThan(amount) {
		return a, ErrInsufficientFunds
	}
	a.Available = a.Available.Sub(amount)
	return a, nil
}

// Hold moves amount from available to held. Available may go negative when the
// disputed funds were already withdrawn.
func (a Account) Hold(amount money.Amount) Account {
	a.Available = a.Available.Sub(amount)
	a.Held = a.Held.Add(amount)
	return a
}

// Release moves amount from held back to available.
func (a Account) Release(amount money.Amount) Account {
	a.Held = a.Held.Sub(amount)
	a.Available = a.Available.Add(amount)
	return a
}

// Reverse removes amount from held and freezes the account.
func (a Account) Reverse(amount money.Amount) Account {
	a.Held = a.Held.Sub(amount)
	a.Locked = true
	return a
}
