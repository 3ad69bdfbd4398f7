package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount is kept and rendered with.
const Scale = 4

var (
	// ErrNegative is returned when a parsed amount is below zero.
	ErrNegative = errors.New("amount must be non-negative")

	// ErrPrecision is returned when a parsed amount has more than Scale fractional digits.
	ErrPrecision = errors.New("amount has more than 4 decimal places")

	// ErrMalformed is returned when the input is not a decimal number.
	ErrMalformed = errors.New("malformed amount")
)

// Amount is an exact fixed-point monetary value. The zero value is 0.0000.
type Amount struct {
	value decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// Parse decodes a non-negative decimal string with at most four fractional digits.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrMalformed
	}
	if strings.ContainsAny(s, "eE") {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if d.IsNegative() || strings.HasPrefix(s, "-") {
		return Amount{}, ErrNegative
	}
	if -d.Exponent() > Scale {
		return Amount{}, ErrPrecision
	}
	return Amount{value: d}, nil
}

// MustParse is Parse for literals in tests and fixtures; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal wraps d, rounding to Scale digits.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{value: d.Round(Scale)}
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.value }

func (a Amount) Add(b Amount) Amount { return Amount{value: a.value.Add(b.value)} }

func (a Amount) Sub(b Amount) Amount { return Amount{value: a.value.Sub(b.value)} }

func (a Amount) Cmp(b Amount) int { return a.value.Cmp(b.value) }

func (a Amount) Equal(b Amount) bool { return a.value.Equal(b.value) }

func (a Amount) LessThan(b Amount) bool { return a.value.LessThan(b.value) }

func (a Amount) IsNegative() bool { return a.value.IsNegative() }

func (a Amount) IsZero() bool { return a.value.IsZero() }

// String renders the amount with exactly four decimal places.
func (a Amount) String() string {
	return a.value.StringFixed(Scale)
}

// MarshalJSON encodes the amount as a fixed four decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare numbers. Negative values are allowed
// here since account balances can legitimately go below zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	a.value = d
	return nil
}
