package importer

import (
	"io"
	"time"
)

type Format string

const (
	// FormatCSV is a spreadsheet export with date, member and amount columns.
	FormatCSV Format = "csv"
	// FormatJSON is the bulk-payment body accepted by the admin API.
	FormatJSON Format = "json"
)

// Payment is one parsed row. Date is zero when the source did not carry one, and
// MemberID is zero when the member must be resolved by name.
type Payment struct {
	Line       int
	Date       time.Time
	MemberID   int
	MemberName string
	AmountZar  float64
}

// Parser reads UTF-8 input. The Service takes care of charset detection.
type Parser interface {
	Parse(r io.Reader) ([]Payment, error)
}
