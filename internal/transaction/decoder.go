package transaction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadHeader is returned by NewDecoder when the header lacks a required column.
var ErrBadHeader = errors.New("invalid csv header")

// DecodeError reports a row that could not be turned into a Transaction.
// The stream stays usable after a DecodeError.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder streams transactions out of CSV input with a type,client,tx,amount header.
// Rows may omit trailing columns; columns may appear in any order.
type Decoder struct {
	r       *csv.Reader
	columns map[string]int
}

// NewDecoder reads the header row and prepares the column mapping.
func NewDecoder(r io.Reader) (*Decoder, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrBadHeader)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrBadHeader, required)
		}
	}
	return &Decoder{r: cr, columns: columns}, nil
}

// Next returns the next transaction. It returns io.EOF once the input is exhausted,
// a *DecodeError for a malformed row, or any other error for unrecoverable read failures.
func (d *Decoder) Next() (Transaction, error) {
	for {
		row, err := d.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Transaction{}, io.EOF
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return Transaction{}, &DecodeError{Line: perr.Line, Err: perr.Err}
			}
			return Transaction{}, err
		}
		if blank(row) {
			continue
		}

		line, _ := d.r.FieldPos(0)
		tx, err := Parse(Record{
			Type:   d.field(row, "type"),
			Client: d.field(row, "client"),
			Tx:     d.field(row, "tx"),
			Amount: d.field(row, "amount"),
		})
		if err != nil {
			return Transaction{}, &DecodeError{Line: line, Err: err}
		}
		return tx, nil
	}
}

func (d *Decoder) field(row []string, name string) string {
	i, ok := d.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
