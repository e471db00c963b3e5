package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsonRound struct {
	Date     string        `json:"date"`
	Payments []jsonPayment `json:"payments"`
}

type jsonPayment struct {
	MemberID   int     `json:"memberId"`
	MemberName string  `json:"memberName"`
	AmountZar  float64 `json:"amountZar"`
}

// JSONParser reads the bulk-payment document: one optional round date and a list of
// payments. Line numbers are 1-based positions in the payments array.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Parse(r io.Reader) ([]Payment, error) {
	var round jsonRound
	if err := json.NewDecoder(r).Decode(&round); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}

	var date time.Time

	if raw := strings.TrimSpace(round.Date); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return nil, err
		}

		date = d
	}

	payments := make([]Payment, 0, len(round.Payments))

	for i, jp := range round.Payments {
		if jp.MemberID <= 0 && strings.TrimSpace(jp.MemberName) == "" {
			return nil, fmt.Errorf("line %d: payment has neither memberId nor memberName", i+1)
		}

		if jp.AmountZar <= 0 {
			return nil, fmt.Errorf("line %d: amount must be positive, got %v", i+1, jp.AmountZar)
		}

		payments = append(payments, Payment{
			Line:       i + 1,
			Date:       date,
			MemberID:   max(jp.MemberID, 0),
			MemberName: strings.TrimSpace(jp.MemberName),
			AmountZar:  jp.AmountZar,
		})
	}

	return payments, nil
}
