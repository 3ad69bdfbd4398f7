package transaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/congo-pay/payments_engine/internal/money"
)

// ClientID identifies a client account.
type ClientID uint16

// ID identifies a transaction across the whole input stream.
type ID uint32

// Type enumerates the supported transaction kinds.
type Type uint8

const (
	Deposit Type = iota + 1
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

var typeNames = map[Type]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// HasAmount reports whether records of this type carry an amount.
func (t Type) HasAmount() bool {
	return t == Deposit || t == Withdrawal
}

var (
	// ErrUnknownType is returned for a type field that is not one of the five kinds.
	ErrUnknownType = errors.New("unknown transaction type")
	// ErrInvalidClient is returned when the client field is missing or not a uint16.
	ErrInvalidClient = errors.New("invalid client id")
	// ErrInvalidTx is returned when the tx field is missing or not a uint32.
	ErrInvalidTx = errors.New("invalid transaction id")
	// ErrMissingAmount is returned when a deposit or withdrawal has no amount.
	ErrMissingAmount = errors.New("missing amount")
)

// ParseType matches a type name case-insensitively.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Transaction is a validated record. Amount is zero for dispute, resolve and chargeback.
type Transaction struct {
	Type   Type
	Client ClientID
	Tx     ID
	Amount money.Amount
}

func (t Transaction) String() string {
	if t.Type.HasAmount() {
		return fmt.Sprintf("%s client=%d tx=%d amount=%s", t.Type, t.Client, t.Tx, t.Amount)
	}
	return fmt.Sprintf("%s client=%d tx=%d", t.Type, t.Client, t.Tx)
}

// Record is the raw, untyped shape of an input row.
type Record struct {
	Type   string `json:"type"`
	Client string `json:"client"`
	Tx     string `json:"tx"`
	Amount string `json:"amount"`
}

// UnmarshalJSON accepts each field either as a JSON string or a bare number.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   json.RawMessage `json:"type"`
		Client json.RawMessage `json:"client"`
		Tx     json.RawMessage `json:"tx"`
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []struct {
		src json.RawMessage
		dst *string
	}{
		{raw.Type, &r.Type},
		{raw.Client, &r.Client},
		{raw.Tx, &r.Tx},
		{raw.Amount, &r.Amount},
	}
	for _, f := range fields {
		v := bytes.TrimSpace(f.src)
		switch {
		case len(v) == 0, bytes.Equal(v, []byte("null")):
			*f.dst = ""
		case v[0] == '"':
			if err := json.Unmarshal(v, f.dst); err != nil {
				return err
			}
		default:
			*f.dst = string(v)
		}
	}
	return nil
}

// Parse validates a raw record. An amount on a dispute-family record is ignored.
func Parse(r Record) (Transaction, error) {
	typ, err := ParseType(r.Type)
	if err != nil {
		return Transaction{}, err
	}
	client, err := ParseClientID(r.Client)
	if err != nil {
		return Transaction{}, err
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(r.Tx), 10, 32)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidTx, r.Tx)
	}

	out := Transaction{Type: typ, Client: client, Tx: ID(tx)}
	if !typ.HasAmount() {
		return out, nil
	}
	if strings.TrimSpace(r.Amount) == "" {
		return Transaction{}, ErrMissingAmount
	}
	amount, err := money.Parse(r.Amount)
	if err != nil {
		return Transaction{}, err
	}
	out.Amount = amount
	return out, nil
}

// ParseClientID parses a decimal uint16 client identifier.
func ParseClientID(s string) (ClientID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClient, s)
	}
	return ClientID(v), nil
}
