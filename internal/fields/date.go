package fields

import "regexp"

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
	regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{2,4}`),
	regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}`),
}

// Date extracts the document date from text, returning the first match
// verbatim with no normalization. Slash dates win over hyphen dates, which
// win over month-name dates. Falls back to NoDate.
func Date(text string) string {
	for _, p := range datePatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return NoDate
}
