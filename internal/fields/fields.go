// Package fields implements heuristic extraction of structured fields from
// linearized vendor-document text. Each extractor tries an ordered list of
// patterns, first match wins, and falls back to a documented default rather
// than returning an error. Vendor documents have no common schema, so the
// pattern order encodes a priority among plausible layouts; collapsing the
// tries into one pattern would change which heuristic wins.
package fields

// Fallback values returned when no pattern matches.
const (
	UnknownVendor = "Unknown Vendor"
	NoItems       = "Item details not extracted"
	NoDate        = "Date not found"
	NoInvoiceNo   = "N/A"
	MaxItems      = 10
)
