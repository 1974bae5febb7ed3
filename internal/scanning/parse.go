package scanning

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// dateFormats are tried in order when the model ignores the ISO instruction
var dateFormats = []string{
	bill.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseSuggestionJSON parses the JSON answer of a model
func parseSuggestionJSON(text string) (*Suggestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data Suggestion
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Dates the model could not normalise are dropped
	data.Date = normalizeDate(strings.TrimSpace(data.Date))

	if !slices.Contains(bill.ExpenseTypes, data.Type) {
		data.Type = ""
	}

	data.Name = strings.TrimSpace(data.Name)
	if data.Name == "" {
		data.Name = "Dépense"
	}

	if data.Amount < 0 {
		data.Amount = 0
	}

	return &data, nil
}

func normalizeDate(date string) string {
	if date == "" {
		return ""
	}
	for _, format := range dateFormats {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format(bill.DateLayout)
		}
	}
	return ""
}
