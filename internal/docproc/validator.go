package docproc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/openprocure/procflow/internal/fields"
	"github.com/openprocure/procflow/internal/models"
)

// amountTolerance absorbs floating-point and rounding noise when comparing
// the purchase-order total against the receipt total.
const amountTolerance = 0.01

// Fixed result messages.
const (
	msgValid   = "Receipt validated successfully"
	msgInvalid = "Discrepancies found"
)

// ValidateReceipt extracts vendor, amount, and items from a receipt document
// and reconciles them against the purchase order. Only vendor and total
// amount are compared; line items are extracted for the record but not
// cross-checked. Never returns an error: a malformed purchase-order amount
// degrades to an invalid verdict with an explanatory discrepancy.
func (p *Processor) ValidateReceipt(content []byte, po models.PurchaseOrder) models.ReceiptValidation {
	res := p.extractor.Text(content)
	receipt := models.ReceiptData{
		Vendor: fields.Vendor(res.Text),
		Amount: fields.Amount(res.Text),
		Items:  fields.Items(res.Text),
	}

	discrepancies := []string{}

	// Vendor: case-folded substring containment in either direction counts
	// as a match ("Acme Corp" vs "ACME CORPORATION" is fine).
	poVendor := strings.ToLower(po.Vendor)
	receiptVendor := strings.ToLower(receipt.Vendor)
	if !strings.Contains(receiptVendor, poVendor) && !strings.Contains(poVendor, receiptVendor) {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Vendor mismatch: PO='%s' vs Receipt='%s'", po.Vendor, receipt.Vendor))
	}

	poAmount, err := strconv.ParseFloat(po.TotalAmount, 64)
	if err != nil {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Amount check failed: unreadable PO total '%s'", po.TotalAmount))
	} else if math.Abs(poAmount-receipt.Amount) > amountTolerance {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Amount mismatch: PO=$%.2f vs Receipt=$%.2f", poAmount, receipt.Amount))
	}

	valid := len(discrepancies) == 0
	message := msgInvalid
	if valid {
		message = msgValid
	}
	return models.ReceiptValidation{
		IsValid:       valid,
		Discrepancies: discrepancies,
		ReceiptData:   receipt,
		Message:       message,
	}
}
