package importer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type column int

const (
	colDate column = iota
	colMemberID
	colMember
	colAmount
)

// headerAliases maps lower-cased header cells to the column they name.
var headerAliases = map[string]column{
	"date":        colDate,
	"datum":       colDate,
	"paid":        colDate,
	"member_id":   colMemberID,
	"memberid":    colMemberID,
	"id":          colMemberID,
	"member":      colMember,
	"member_name": colMember,
	"membername":  colMember,
	"name":        colMember,
	"amount":      colAmount,
	"amount_zar":  colAmount,
	"amountzar":   colAmount,
	"zar":         colAmount,
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
}

// CSVParser reads payment lists exported from spreadsheets. Rows above the header
// (titles, totals) are ignored; the header needs an amount column and a member or
// member id column.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(r io.Reader) ([]Payment, error) {
	br := bufio.NewReader(r)

	comma, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		cols     map[column]int
		payments []Payment
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		if cols == nil {
			cols = detectHeader(row)
			continue
		}

		if blank(row) {
			continue
		}

		payment, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		payment.Line = line
		payments = append(payments, payment)
	}

	if cols == nil {
		return nil, fmt.Errorf("no header found: expected an amount column and a member or member_id column")
	}

	return payments, nil
}

// sniffDelimiter looks at the first non-empty line: semicolons win when present,
// since comma is also the decimal separator in ZAR amounts.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	head, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("peek: %w", err)
	}

	line, _, _ := strings.Cut(strings.TrimLeft(string(head), "\r\n"), "\n")
	if strings.Contains(line, ";") {
		return ';', nil
	}

	return ',', nil
}

func detectHeader(row []string) map[column]int {
	cols := make(map[column]int)

	for i, cell := range row {
		key := strings.ToLower(strings.TrimSpace(cell))
		if c, ok := headerAliases[key]; ok {
			if _, seen := cols[c]; !seen {
				cols[c] = i
			}
		}
	}

	_, hasAmount := cols[colAmount]
	_, hasMember := cols[colMember]
	_, hasID := cols[colMemberID]

	if !hasAmount || !(hasMember || hasID) {
		return nil
	}

	return cols
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func cell(row []string, cols map[column]int, c column) string {
	i, ok := cols[c]
	if !ok || i >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[i])
}

func parseRow(row []string, cols map[column]int) (Payment, error) {
	var p Payment

	if raw := cell(row, cols, colDate); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return Payment{}, err
		}

		p.Date = d
	}

	if raw := cell(row, cols, colMemberID); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return Payment{}, fmt.Errorf("invalid member id %q", raw)
		}

		p.MemberID = id
	}

	p.MemberName = cell(row, cols, colMember)
	if p.MemberID == 0 && p.MemberName == "" {
		return Payment{}, fmt.Errorf("row has neither member nor member id")
	}

	amount, err := parseAmount(cell(row, cols, colAmount))
	if err != nil {
		return Payment{}, err
	}

	p.AmountZar = amount

	return p, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
