// Package docproc orchestrates text extraction and field extraction into the
// document-derived records of the procurement workflow: proforma analysis,
// purchase-order generation, and receipt validation. No operation in this
// package returns an error to its caller; uncertainty is encoded in the
// returned records (fallback values, discrepancy entries).
package docproc

import (
	"github.com/openprocure/procflow/internal/extract"
	"github.com/openprocure/procflow/internal/fields"
	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/pkg/utils"
)

// excerptLen is how much of the linearized text is kept on the stored record.
const excerptLen = 500

// Processor runs the document pipeline. Stateless and safe for concurrent
// use; each invocation consumes one document's bytes and touches no shared
// state.
type Processor struct {
	extractor *extract.Extractor
}

// NewProcessor returns a Processor backed by the given extractor.
func NewProcessor(e *extract.Extractor) *Processor {
	return &Processor{extractor: e}
}

// AnalyzeProforma builds a structured record from an uploaded proforma
// invoice. Always succeeds: extraction failures surface as field fallback
// values and the ExtractionFailed flag, never as an error. Note that when
// extraction fails the field extractors run against the error message itself;
// the excerpt preserves whatever text the extractors saw.
func (p *Processor) AnalyzeProforma(content []byte) models.ExtractedDocumentData {
	res := p.extractor.Text(content)
	return models.ExtractedDocumentData{
		Vendor:           fields.Vendor(res.Text),
		Items:            fields.Items(res.Text),
		TotalAmount:      fields.Amount(res.Text),
		Date:             fields.Date(res.Text),
		InvoiceNumber:    fields.InvoiceNumber(res.Text),
		RawTextExcerpt:   utils.Excerpt(res.Text, excerptLen),
		ExtractionFailed: res.Failed,
	}
}
