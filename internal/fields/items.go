package fields

import "strings"

// Items extracts line items from text. A line counts as an item line when it
// contains a two-decimal amount and more than two whitespace-separated
// tokens. Lines are returned trimmed, in original order, capped at MaxItems.
// When nothing matches, a single NoItems sentinel is returned so the result
// is never empty.
func Items(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if !decimalAmount.MatchString(line) {
			continue
		}
		if len(strings.Fields(line)) <= 2 {
			continue
		}
		items = append(items, strings.TrimSpace(line))
		if len(items) == MaxItems {
			break
		}
	}
	if len(items) == 0 {
		return []string{NoItems}
	}
	return items
}
