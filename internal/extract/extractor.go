// Package extract produces a best-effort plain-text rendering of uploaded
// vendor documents (proforma invoices, receipts).
package extract

import (
	"bytes"
	"fmt"
)

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// Result is the outcome of text extraction. When extraction fails, Text holds
// a human-readable error message in place of the document content and Failed
// is true. Callers that only look at Text get the legacy substitution
// behavior; Failed is the explicit discriminant.
type Result struct {
	Text   string
	Failed bool
}

// Extractor extracts linearized text from document bytes. It is stateless and
// safe for concurrent use.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Text renders the document as plain text, page-concatenated in page order
// with no separator. The format is sniffed from the content: PDF, DOCX (zip),
// otherwise plain text. Text never fails; any extraction error is returned as
// the Result text with Failed set.
func (e *Extractor) Text(content []byte) Result {
	text, err := e.extract(content)
	if err != nil {
		return Result{Text: "Error extracting text: " + err.Error(), Failed: true}
	}
	return Result{Text: text}
}

func (e *Extractor) extract(content []byte) (text string, err error) {
	// The PDF reader panics on some malformed cross-reference tables; the
	// contract here is to degrade, not to crash the caller.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse document: %v", r)
		}
	}()
	switch {
	case bytes.HasPrefix(content, pdfMagic):
		return extractPDF(content)
	case bytes.HasPrefix(content, zipMagic):
		return extractDOCX(content)
	default:
		return extractPlain(content)
	}
}
