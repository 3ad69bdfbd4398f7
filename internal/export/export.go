package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/congo-pay/payments_engine/internal/account"
)

// Format selects how a snapshot is rendered.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Header is the column order shared by every tabular format.
var Header = []string{"client", "available", "held", "total", "locked"}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatTable:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Row renders one account as the five output columns.
func Row(acc account.Account) []string {
	return []string{
		strconv.FormatUint(uint64(acc.Client), 10),
		acc.Available.String(),
		acc.Held.String(),
		acc.Total().String(),
		strconv.FormatBool(acc.Locked),
	}
}

// Write renders accounts to w in the requested format.
func Write(w io.Writer, format Format, accounts []account.Account) error {
	switch format {
	case FormatCSV, "":
		return writeCSV(w, accounts)
	case FormatJSON:
		return writeJSON(w, accounts)
	case FormatTable:
		return writeTable(w, accounts)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeCSV(w io.Writer, accounts []account.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, acc := range accounts {
		if err := cw.Write(Row(acc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// View is the JSON shape of an account, with the derived total spelled out.
type View struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// NewView builds the JSON view of acc.
func NewView(acc account.Account) View {
	return View{
		Client:    uint16(acc.Client),
		Available: acc.Available.String(),
		Held:      acc.Held.String(),
		Total:     acc.Total().String(),
		Locked:    acc.Locked,
	}
}

// Views converts a snapshot for JSON encoding.
func Views(accounts []account.Account) []View {
	views := make([]View, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, NewView(acc))
	}
	return views
}

func writeJSON(w io.Writer, accounts []account.Account) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Views(accounts))
}

func writeTable(w io.Writer, accounts []account.Account) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(Header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, acc := range accounts {
		table.Append(Row(acc))
	}
	table.Render()
	return nil
}
