package docproc

import (
	"fmt"

	"github.com/openprocure/procflow/internal/models"
)

// poStatus is the only status a purchase order is ever created with.
const poStatus = "APPROVED"

// GeneratePurchaseOrder maps an approved request to its purchase-order
// record. Pure function, no I/O: the PO number is derived from the request id
// alone, so regenerating from the same request yields the same record.
// Approver slots left unset render as "N/A"; the workflow should have filled
// level 1 before level 2, but this function tolerates a request missing
// level-1 data.
func GeneratePurchaseOrder(req *models.PurchaseRequest) models.PurchaseOrder {
	vendor := "Unknown"
	var items []string
	if req.ProformaData != nil {
		if req.ProformaData.Vendor != "" {
			vendor = req.ProformaData.Vendor
		}
		items = req.ProformaData.Items
	}
	if items == nil {
		items = []string{}
	}
	return models.PurchaseOrder{
		PONumber:         fmt.Sprintf("PO-%06d", req.ID),
		RequestID:        req.ID,
		Vendor:           vendor,
		Items:            items,
		TotalAmount:      req.Amount.StringFixed(2),
		ApprovedByLevel1: approverName(req.Level1),
		ApprovedByLevel2: approverName(req.Level2),
		Status:           poStatus,
		Notes:            fmt.Sprintf("Purchase order for: %s", req.Title),
	}
}

func approverName(a models.Approval) string {
	if a.ApproverName == "" {
		return "N/A"
	}
	return a.ApproverName
}
