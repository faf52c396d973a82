package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Approval captures one sign-off level on a request.
type Approval struct {
	Approved     bool       `json:"approved"`
	ApproverID   int64      `json:"approver_id,omitempty"`
	ApproverName string     `json:"approver_name,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// Rejection captures a terminal reject decision.
type Rejection struct {
	RejectedByID   int64      `json:"rejected_by_id,omitempty"`
	RejectedByName string     `json:"rejected_by_name,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// PurchaseRequest is a purchase request moving through the two-level approval
// workflow. Document-derived records (proforma data, purchase order, receipt
// validation) are attached as they are produced and never recomputed.
type PurchaseRequest struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	ProformaPath string                 `json:"proforma_path,omitempty"`
	ProformaData *ExtractedDocumentData `json:"proforma_data,omitempty"`

	PurchaseOrderData *PurchaseOrder `json:"purchase_order_data,omitempty"`

	ReceiptPath       string             `json:"receipt_path,omitempty"`
	ReceiptValidation *ReceiptValidation `json:"receipt_validation,omitempty"`

	Level1 Approval  `json:"level_1"`
	Level2 Approval  `json:"level_2"`
	Reject Rejection `json:"rejection"`
}

// CanApproveLevel1 reports whether user may grant first-level approval.
func (r *PurchaseRequest) CanApproveLevel1(user *User) bool {
	return r.Status == StatusPending && !r.Level1.Approved && user.Role == RoleApproverLevel1
}

// CanApproveLevel2 reports whether user may grant second-level approval.
// Second level requires first level to have been granted already.
func (r *PurchaseRequest) CanApproveLevel2(user *User) bool {
	return r.Status == StatusPending && r.Level1.Approved && !r.Level2.Approved && user.Role == RoleApproverLevel2
}

// CanReject reports whether user may reject the request.
func (r *PurchaseRequest) CanReject(user *User) bool {
	if r.Status != StatusPending {
		return false
	}
	return user.Role == RoleApproverLevel1 || user.Role == RoleApproverLevel2
}
