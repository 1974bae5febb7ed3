package bill

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the storage format of Bill.Date
const DateLayout = "2006-01-02"

// DefaultPct is applied when the form leaves pct empty
const DefaultPct = 20

// MaxAmount is the largest amount a bill may carry
const MaxAmount = 1_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmount)

var frenchMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

var frenchTitle = cases.Title(language.French)

// FormatDate turns "2004-04-04" into "4 Avr. 04"
func FormatDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("parsing bill date %q: %w", date, err)
	}
	month := []rune(frenchMonths[t.Month()-1])
	if len(month) > 3 {
		month = month[:3]
	}
	year := fmt.Sprintf("%04d", t.Year())
	return fmt.Sprintf("%d %s. %s", t.Day(), frenchTitle.String(string(month)), year[2:]), nil
}

// FormatStatus maps a status to its label
func FormatStatus(status Status) string {
	switch status {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	default:
		return string(status)
	}
}

// ParseAmount parses a form amount. Both "12.50" and "12,50" are accepted.
func ParseAmount(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", raw)}
	}
	if d.IsNegative() {
		return 0, &ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	if d.GreaterThan(maxAmount) {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("amount must not exceed %d", MaxAmount)}
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}

// ParsePct parses the VAT percentage, defaulting to DefaultPct when empty
func ParsePct(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPct, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, &ValidationError{Field: "pct", Message: fmt.Sprintf("invalid percentage %q", raw)}
	}
	if !d.IsInteger() {
		return 0, &ValidationError{Field: "pct", Message: fmt.Sprintf("percentage must be a whole number, got %q", raw)}
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, &ValidationError{Field: "pct", Message: "percentage must be between 0 and 100"}
	}
	pct := d.IntPart()
	if pct == 0 {
		return DefaultPct, nil
	}
	return int(pct), nil
}
