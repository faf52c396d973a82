package fields

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountPatterns = []*regexp.Regexp{
		// A total label, optional '$', and a number with optional thousands
		// separators.
		regexp.MustCompile(`(?i)(?:Total|Amount|Grand Total|Sum):\s*\$?\s*([\d,]+\.?\d*)`),
		// A bare '$'-prefixed amount with exactly two decimal places.
		regexp.MustCompile(`\$\s*([\d,]+\.\d{2})`),
	}
	// decimalAmount matches any two-decimal amount anywhere in the text.
	decimalAmount = regexp.MustCompile(`\d+\.\d{2}`)
)

// Amount extracts the total amount from text. Labeled totals win over bare
// '$'-amounts; when neither matches, the last two-decimal number in the text
// is used (totals typically appear last). Returns 0.0 when the text carries
// no parseable amount.
func Amount(text string) float64 {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		// Unparseable match (e.g. bare separator artifacts): try the next
		// pattern rather than giving up.
	}
	if all := decimalAmount.FindAllString(text, -1); len(all) > 0 {
		if v, err := strconv.ParseFloat(all[len(all)-1], 64); err == nil {
			return v
		}
	}
	return 0.0
}
