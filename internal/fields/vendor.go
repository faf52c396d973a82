package fields

import (
	"regexp"
	"strings"
)

var vendorPatterns = []*regexp.Regexp{
	// A label followed by a name of letters, spaces, '&', '.' or ','.
	regexp.MustCompile(`(?i)(?:Vendor|Supplier|From|Company):\s*([A-Za-z\s&.,]+)`),
	// A capitalized name line with an address/contact line right below it.
	regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&.,]+)\n.*(?:Address|Tel|Email)`),
}

// Vendor extracts the vendor name from text. Falls back to the first
// non-empty line, then to UnknownVendor.
func Vendor(text string) string {
	for _, p := range vendorPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return UnknownVendor
}
