// Package workflow implements the two-level purchase request approval flow:
// staff create requests with proforma documents, level-1 and level-2
// approvers sign off in order, final approval generates the purchase order,
// and creators submit receipts that are validated against it.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/docproc"
	"github.com/openprocure/procflow/internal/filestore"
	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
	"github.com/openprocure/procflow/pkg/utils"
)

// Indexer receives requests for full-text search. The service tolerates a
// nil Indexer and treats indexing failures as non-fatal.
type Indexer interface {
	IndexRequest(req *models.PurchaseRequest) error
}

// RequestInput carries the user-editable fields of a purchase request.
type RequestInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	ProformaName string          `json:"-"`
}

// Service coordinates requests, documents and approvals.
type Service struct {
	store   storage.Storage
	files   *filestore.Store
	proc    *docproc.Processor
	indexer Indexer
	logger  *zap.Logger
}

// NewService creates a workflow service. indexer may be nil.
func NewService(store storage.Storage, files *filestore.Store, proc *docproc.Processor, indexer Indexer, logger *zap.Logger) *Service {
	return &Service{store: store, files: files, proc: proc, indexer: indexer, logger: logger}
}

// Create registers a new purchase request for a staff user. When proforma
// bytes are provided the document is stored and analyzed; analysis can
// degrade but never fails the create.
func (s *Service) Create(ctx context.Context, user *models.User, input RequestInput, proforma []byte) (*models.PurchaseRequest, error) {
	if user.Role != models.RoleStaff {
		return nil, fmt.Errorf("%w: only staff can create requests", ErrForbidden)
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	req := &models.PurchaseRequest{
		Title:       input.Title,
		Description: input.Description,
		Amount:      input.Amount,
		Status:      models.StatusPending,
		CreatedBy:   user.ID,
	}
	if len(proforma) > 0 {
		if err := s.attachProforma(req, input.ProformaName, proforma); err != nil {
			return nil, err
		}
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info("purchase request created",
		zap.Int64("request_id", req.ID),
		zap.String("title", utils.Truncate(req.Title, 60)),
		zap.Int64("created_by", user.ID))
	s.index(req)
	return req, nil
}

// Update edits a pending request. Only the creator may update, and a new
// proforma replaces the stored analysis.
func (s *Service) Update(ctx context.Context, user *models.User, id int64, input RequestInput, proforma []byte) (*models.PurchaseRequest, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	req, err := s.store.MutateRequest(ctx, id, func(r *models.PurchaseRequest) error {
		if r.CreatedBy != user.ID {
			return fmt.Errorf("%w: only the creator can update a request", ErrForbidden)
		}
		if r.Status != models.StatusPending {
			return fmt.Errorf("%w: only pending requests can be updated", ErrWrongStage)
		}
		r.Title = input.Title
		r.Description = input.Description
		r.Amount = input.Amount
		if len(proforma) > 0 {
			if err := s.attachProforma(r, input.ProformaName, proforma); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.index(req)
	return req, nil
}

// Approve advances a pending request one approval level. A level-1 approver
// grants first-level approval; a level-2 approver, once level 1 is granted,
// grants final approval and generates the purchase order.
func (s *Service) Approve(ctx context.Context, user *models.User, id int64) (*models.PurchaseRequest, error) {
	req, err := s.store.MutateRequest(ctx, id, func(r *models.PurchaseRequest) error {
		now := time.Now()
		switch {
		case r.CanApproveLevel1(user):
			r.Level1 = models.Approval{
				Approved:     true,
				ApproverID:   user.ID,
				ApproverName: user.DisplayName(),
				ApprovedAt:   &now,
			}
		case r.CanApproveLevel2(user):
			r.Level2 = models.Approval{
				Approved:     true,
				ApproverID:   user.ID,
				ApproverName: user.DisplayName(),
				ApprovedAt:   &now,
			}
			r.Status = models.StatusApproved
			po := docproc.GeneratePurchaseOrder(r)
			r.PurchaseOrderData = &po
		case user.Role != models.RoleApproverLevel1 && user.Role != models.RoleApproverLevel2:
			return fmt.Errorf("%w: only approvers can approve requests", ErrForbidden)
		default:
			return fmt.Errorf("%w: request is not awaiting this approval level", ErrWrongStage)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Status == models.StatusApproved {
		s.logger.Info("purchase request approved",
			zap.Int64("request_id", req.ID),
			zap.String("po_number", req.PurchaseOrderData.PONumber))
	} else {
		s.logger.Info("first-level approval granted",
			zap.Int64("request_id", req.ID),
			zap.Int64("approver_id", user.ID))
	}
	s.index(req)
	return req, nil
}

// Reject marks a pending request rejected with a reason. Either approver
// level may reject.
func (s *Service) Reject(ctx context.Context, user *models.User, id int64, reason string) (*models.PurchaseRequest, error) {
	if reason == "" {
		return nil, ErrEmptyReason
	}
	req, err := s.store.MutateRequest(ctx, id, func(r *models.PurchaseRequest) error {
		if user.Role != models.RoleApproverLevel1 && user.Role != models.RoleApproverLevel2 {
			return fmt.Errorf("%w: only approvers can reject requests", ErrForbidden)
		}
		if !r.CanReject(user) {
			return fmt.Errorf("%w: only pending requests can be rejected", ErrWrongStage)
		}
		now := time.Now()
		r.Status = models.StatusRejected
		r.Reject = models.Rejection{
			RejectedByID:   user.ID,
			RejectedByName: user.DisplayName(),
			RejectedAt:     &now,
			Reason:         reason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase request rejected",
		zap.Int64("request_id", req.ID),
		zap.String("reason", utils.Truncate(reason, 120)))
	s.index(req)
	return req, nil
}

// SubmitReceipt attaches a receipt to an approved request and validates it
// against the stored purchase order. Validation discrepancies are recorded
// on the request, not returned as errors.
func (s *Service) SubmitReceipt(ctx context.Context, user *models.User, id int64, name string, receipt []byte) (*models.PurchaseRequest, error) {
	req, err := s.store.MutateRequest(ctx, id, func(r *models.PurchaseRequest) error {
		if r.CreatedBy != user.ID && user.Role != models.RoleFinance {
			return fmt.Errorf("%w: only the creator or finance can submit receipts", ErrForbidden)
		}
		if r.Status != models.StatusApproved {
			return fmt.Errorf("%w: receipts can only be submitted for approved requests", ErrWrongStage)
		}
		path, err := s.files.Save(name, receipt)
		if err != nil {
			return fmt.Errorf("failed to store receipt: %w", err)
		}
		r.ReceiptPath = path

		if r.PurchaseOrderData == nil {
			r.ReceiptValidation = &models.ReceiptValidation{
				IsValid:       false,
				Discrepancies: []string{"No purchase order on record for this request"},
				Message:       "Discrepancies found",
			}
			return nil
		}
		validation := s.proc.ValidateReceipt(receipt, *r.PurchaseOrderData)
		r.ReceiptValidation = &validation
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("receipt submitted",
		zap.Int64("request_id", req.ID),
		zap.Bool("valid", req.ReceiptValidation.IsValid))
	return req, nil
}

// Get returns one request if the user is allowed to see it.
func (s *Service) Get(ctx context.Context, user *models.User, id int64) (*models.PurchaseRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(user, req) {
		return nil, fmt.Errorf("%w: request belongs to another user", ErrForbidden)
	}
	return req, nil
}

// List returns the requests visible to the user. Staff see their own,
// level-1 approvers see pending requests, level-2 approvers see pending
// requests that already carry first-level approval, finance sees everything.
func (s *Service) List(ctx context.Context, user *models.User) ([]*models.PurchaseRequest, error) {
	filter := storage.RequestFilter{}
	switch user.Role {
	case models.RoleStaff:
		filter.CreatedBy = user.ID
	case models.RoleApproverLevel1:
		filter.Status = models.StatusPending
	case models.RoleApproverLevel2:
		yes := true
		filter.Status = models.StatusPending
		filter.Level1Approved = &yes
	}
	return s.store.ListRequests(ctx, filter)
}

func (s *Service) attachProforma(req *models.PurchaseRequest, name string, proforma []byte) error {
	path, err := s.files.Save(name, proforma)
	if err != nil {
		return fmt.Errorf("failed to store proforma: %w", err)
	}
	req.ProformaPath = path
	data := s.proc.AnalyzeProforma(proforma)
	req.ProformaData = &data
	if data.ExtractionFailed {
		s.logger.Warn("proforma text extraction failed",
			zap.String("file", path))
	}
	return nil
}

func (s *Service) index(req *models.PurchaseRequest) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexRequest(req); err != nil {
		s.logger.Warn("failed to index request",
			zap.Int64("request_id", req.ID),
			zap.Error(err))
	}
}

func canView(user *models.User, req *models.PurchaseRequest) bool {
	switch user.Role {
	case models.RoleApproverLevel1, models.RoleApproverLevel2, models.RoleFinance:
		return true
	default:
		return req.CreatedBy == user.ID
	}
}

func validateInput(input RequestInput) error {
	if input.Title == "" {
		return ErrMissingTitle
	}
	if !input.Amount.IsPositive() {
		return ErrBadAmount
	}
	return nil
}
