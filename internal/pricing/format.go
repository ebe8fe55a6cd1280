package pricing

import "strings"

// DefaultCurrency prefixes every rewritten price label.
const DefaultCurrency = "₹"

// Formatter builds price label text.
type Formatter struct {
	Currency string
}

// Format returns the label for newNumeric. An empty (after trimming) value
// leaves existingText untouched; otherwise the previous content is discarded.
func (f Formatter) Format(existingText, newNumeric string) string {
	n := strings.TrimSpace(newNumeric)
	if n == "" {
		return existingText
	}
	return f.Currency + n
}

// FormatPrice formats with DefaultCurrency.
func FormatPrice(existingText, newNumeric string) string {
	return Formatter{Currency: DefaultCurrency}.Format(existingText, newNumeric)
}
