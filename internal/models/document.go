// Package models defines core data structures for purchase requests, users,
// and document-derived records.
package models

// ExtractedDocumentData holds the structured fields pulled out of an uploaded
// vendor document (proforma invoice). Produced once per upload and stored on
// the owning purchase request; never mutated afterward.
type ExtractedDocumentData struct {
	Vendor           string   `json:"vendor"`
	Items            []string `json:"items"`
	TotalAmount      float64  `json:"total_amount"`
	Date             string   `json:"date"`
	InvoiceNumber    string   `json:"invoice_number"`
	RawTextExcerpt   string   `json:"raw_text_excerpt"`
	ExtractionFailed bool     `json:"extraction_failed,omitempty"`
}

// PurchaseOrder is the buyer-issued commitment record generated when the
// second approval level is granted. Created exactly once per request.
type PurchaseOrder struct {
	PONumber         string   `json:"po_number"`
	RequestID        int64    `json:"request_id"`
	Vendor           string   `json:"vendor"`
	Items            []string `json:"items"`
	TotalAmount      string   `json:"total_amount"`
	ApprovedByLevel1 string   `json:"approved_by_level_1"`
	ApprovedByLevel2 string   `json:"approved_by_level_2"`
	Status           string   `json:"status"`
	Notes            string   `json:"notes"`
}

// ReceiptData is the subset of extracted fields used for receipt
// reconciliation.
type ReceiptData struct {
	Vendor string   `json:"vendor"`
	Amount float64  `json:"amount"`
	Items  []string `json:"items"`
}

// ReceiptValidation is the verdict of reconciling a submitted receipt against
// the purchase order. IsValid is true iff Discrepancies is empty.
type ReceiptValidation struct {
	IsValid       bool        `json:"is_valid"`
	Discrepancies []string    `json:"discrepancies"`
	ReceiptData   ReceiptData `json:"receipt_data"`
	Message       string      `json:"message"`
}
