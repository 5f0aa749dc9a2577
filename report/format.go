// Package report turns predictions into the text, table and chart views shared
// by the web and terminal front-ends.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"fuelcell/ml"
	"fuelcell/stack"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders numbers with exactly two decimals and the decimal mark of
// the configured locale. Digits are never grouped.
type Formatter struct {
	decimal string
}

// NewFormatter returns a Formatter for a BCP 47 locale; "" means "en".
func NewFormatter(locale string) (*Formatter, error) {
	if locale == "" {
		locale = "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	// "0.5" in en, "0,5" in de.
	half := message.NewPrinter(tag).Sprintf("%.1f", 0.5)
	decimal := strings.TrimSuffix(strings.TrimPrefix(half, "0"), "5")
	if decimal == "" {
		decimal = "."
	}
	return &Formatter{decimal: decimal}, nil
}

// Value formats v like %.2f, swapping in the locale's decimal mark.
func (f *Formatter) Value(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if f.decimal == "." {
		return s
	}
	return strings.Replace(s, ".", f.decimal, 1)
}

// Row is one line of the results table.
type Row struct {
	Variable  string `json:"variable"`
	Unit      string `json:"unit"`
	Predicted string `json:"predicted"`
	Reference string `json:"reference,omitempty"`
}

// Rows pairs every predicted target with its formatted value. ref may be nil.
func (f *Formatter) Rows(p *ml.Prediction, ref *stack.Reference) []Row {
	var refValues []float64
	if ref != nil {
		refValues = ref.Values()
	}
	rows := make([]Row, len(p.Targets))
	for i, t := range p.Targets {
		rows[i] = Row{Variable: t.Name, Unit: t.Unit, Predicted: f.Value(t.Value)}
		if i < len(refValues) {
			rows[i].Reference = f.Value(refValues[i])
		}
	}
	return rows
}

// LoadCondition is the one-line summary shown above the table.
func (f *Formatter) LoadCondition(p *ml.Prediction) string {
	return fmt.Sprintf("Predicted Load Condition: %d", p.LoadCondition)
}
