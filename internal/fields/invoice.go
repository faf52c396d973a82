package fields

import "regexp"

var invoicePatterns = []*regexp.Regexp{
	// A document-number label, optional '#'/':'/whitespace, then the token.
	regexp.MustCompile(`(?i)(?:Invoice|Proforma|Ref|No|Number)[\s#:]*([A-Z0-9-]+)`),
	// A bare '#'-prefixed token.
	regexp.MustCompile(`(?i)#([A-Z0-9-]+)`),
}

// InvoiceNumber extracts the invoice or proforma number from text. Falls back
// to NoInvoiceNo.
func InvoiceNumber(text string) string {
	for _, p := range invoicePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return NoInvoiceNo
}
