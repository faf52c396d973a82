package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/docproc"
	"github.com/openprocure/procflow/internal/extract"
	"github.com/openprocure/procflow/internal/filestore"
	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
)

type fixture struct {
	svc   *Service
	store *storage.SQLiteStorage

	staff    *models.User
	approver *models.User
	senior   *models.User
	finance  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	files, err := filestore.NewStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	proc := docproc.NewProcessor(extract.NewExtractor())
	f := &fixture{
		svc:   NewService(store, files, proc, nil, zap.NewNop()),
		store: store,
	}
	f.staff = f.user(t, "alice", models.RoleStaff)
	f.approver = f.user(t, "lena", models.RoleApproverLevel1)
	f.senior = f.user(t, "omar", models.RoleApproverLevel2)
	f.finance = f.user(t, "fran", models.RoleFinance)
	return f
}

func (f *fixture) user(t *testing.T, username, role string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: role, PasswordHash: "x"}
	if err := f.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func input(title string, amount string) RequestInput {
	return RequestInput{Title: title, Amount: decimal.RequireFromString(amount)}
}

const proformaText = "Vendor: Acme Corp\n01/02/2024\nOffice chair 2 75.00\nTotal: $150.00"

func TestCreate(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Create(context.Background(), f.staff, input("Office chairs", "150.00"), []byte(proformaText))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != models.StatusPending {
		t.Errorf("status = %q", req.Status)
	}
	if req.ProformaPath == "" {
		t.Error("proforma path not set")
	}
	if req.ProformaData == nil {
		t.Fatal("proforma not analyzed")
	}
	if req.ProformaData.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q", req.ProformaData.Vendor)
	}
	if req.ProformaData.TotalAmount != 150.00 {
		t.Errorf("total = %v", req.ProformaData.TotalAmount)
	}
}

func TestCreate_roleAndInputChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.approver, input("x", "1"), nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("approver create: got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.staff, input("", "1"), nil); !errors.Is(err, ErrMissingTitle) {
		t.Errorf("empty title: got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.staff, input("x", "0"), nil); !errors.Is(err, ErrBadAmount) {
		t.Errorf("zero amount: got %v", err)
	}
}

func TestCreate_withoutProforma(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Create(context.Background(), f.staff, input("Chairs", "99.99"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.ProformaData != nil || req.ProformaPath != "" {
		t.Errorf("unexpected proforma fields: %+v", req)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Chairs", "100"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := f.user(t, "mallory", models.RoleStaff)
	if _, err := f.svc.Update(ctx, other, req.ID, input("Hijacked", "1"), nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-creator update: got %v", err)
	}

	updated, err := f.svc.Update(ctx, f.staff, req.ID, input("Ergonomic chairs", "120"), []byte(proformaText))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Ergonomic chairs" || !updated.Amount.Equal(decimal.RequireFromString("120")) {
		t.Errorf("fields not updated: %+v", updated)
	}
	if updated.ProformaData == nil || updated.ProformaData.Vendor != "Acme Corp" {
		t.Errorf("proforma not re-analyzed: %+v", updated.ProformaData)
	}
}

func TestApprove_fullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Office chairs", "150.00"), []byte(proformaText))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := f.svc.Approve(ctx, f.approver, req.ID)
	if err != nil {
		t.Fatalf("level 1 approve: %v", err)
	}
	if !first.Level1.Approved || first.Level1.ApproverID != f.approver.ID {
		t.Errorf("level 1 not recorded: %+v", first.Level1)
	}
	if first.Status != models.StatusPending {
		t.Errorf("status flipped early: %q", first.Status)
	}
	if first.PurchaseOrderData != nil {
		t.Error("purchase order generated before final approval")
	}

	final, err := f.svc.Approve(ctx, f.senior, req.ID)
	if err != nil {
		t.Fatalf("level 2 approve: %v", err)
	}
	if final.Status != models.StatusApproved {
		t.Errorf("status = %q", final.Status)
	}
	po := final.PurchaseOrderData
	if po == nil {
		t.Fatal("purchase order not generated")
	}
	if !strings.HasPrefix(po.PONumber, "PO-") || po.RequestID != req.ID {
		t.Errorf("po = %+v", po)
	}
	if po.Vendor != "Acme Corp" || po.TotalAmount != "150.00" {
		t.Errorf("po fields = %+v", po)
	}
	if po.ApprovedByLevel1 != f.approver.DisplayName() || po.ApprovedByLevel2 != f.senior.DisplayName() {
		t.Errorf("approver names = %q / %q", po.ApprovedByLevel1, po.ApprovedByLevel2)
	}
}

func TestApprove_ordering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Chairs", "100"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Approve(ctx, f.senior, req.ID); !errors.Is(err, ErrWrongStage) {
		t.Errorf("level 2 before level 1: got %v", err)
	}
	if _, err := f.svc.Approve(ctx, f.staff, req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff approve: got %v", err)
	}

	if _, err := f.svc.Approve(ctx, f.approver, req.ID); err != nil {
		t.Fatalf("level 1 approve: %v", err)
	}
	if _, err := f.svc.Approve(ctx, f.approver, req.ID); !errors.Is(err, ErrWrongStage) {
		t.Errorf("repeated level 1 approve: got %v", err)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Chairs", "100"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Reject(ctx, f.approver, req.ID, ""); !errors.Is(err, ErrEmptyReason) {
		t.Errorf("empty reason: got %v", err)
	}
	if _, err := f.svc.Reject(ctx, f.staff, req.ID, "nope"); !errors.Is(err, ErrForbidden) {
		t.Errorf("staff reject: got %v", err)
	}

	rejected, err := f.svc.Reject(ctx, f.approver, req.ID, "over budget")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.StatusRejected || rejected.Reject.Reason != "over budget" {
		t.Errorf("rejection not recorded: %+v", rejected)
	}
	if rejected.Reject.RejectedByID != f.approver.ID {
		t.Errorf("rejected by = %d", rejected.Reject.RejectedByID)
	}

	if _, err := f.svc.Reject(ctx, f.senior, req.ID, "again"); !errors.Is(err, ErrWrongStage) {
		t.Errorf("reject after reject: got %v", err)
	}
}

func approve(t *testing.T, f *fixture, id int64) *models.PurchaseRequest {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Approve(ctx, f.approver, id); err != nil {
		t.Fatalf("level 1 approve: %v", err)
	}
	req, err := f.svc.Approve(ctx, f.senior, id)
	if err != nil {
		t.Fatalf("level 2 approve: %v", err)
	}
	return req
}

func TestSubmitReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Office chairs", "150.00"), []byte(proformaText))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	receipt := []byte("Vendor: Acme Corp\nTotal: $150.00")
	if _, err := f.svc.SubmitReceipt(ctx, f.staff, req.ID, "receipt.txt", receipt); !errors.Is(err, ErrWrongStage) {
		t.Errorf("receipt before approval: got %v", err)
	}

	approve(t, f, req.ID)

	if _, err := f.svc.SubmitReceipt(ctx, f.approver, req.ID, "receipt.txt", receipt); !errors.Is(err, ErrForbidden) {
		t.Errorf("approver submit: got %v", err)
	}

	got, err := f.svc.SubmitReceipt(ctx, f.staff, req.ID, "receipt.txt", receipt)
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}
	if got.ReceiptPath == "" {
		t.Error("receipt path not set")
	}
	if got.ReceiptValidation == nil {
		t.Fatal("validation not stored")
	}
	if !got.ReceiptValidation.IsValid {
		t.Errorf("validation failed: %+v", got.ReceiptValidation)
	}
}

func TestSubmitReceipt_mismatchRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Office chairs", "150.00"), []byte(proformaText))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approve(t, f, req.ID)

	got, err := f.svc.SubmitReceipt(ctx, f.staff, req.ID, "receipt.txt", []byte("Vendor: Globex\nTotal: $999.00"))
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}
	if got.ReceiptValidation.IsValid {
		t.Error("mismatched receipt marked valid")
	}
	if len(got.ReceiptValidation.Discrepancies) != 2 {
		t.Errorf("discrepancies = %v", got.ReceiptValidation.Discrepancies)
	}
}

func TestSubmitReceipt_missingPurchaseOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Approved row without a stored purchase order, written directly.
	req := &models.PurchaseRequest{
		Title: "Legacy", Amount: decimal.RequireFromString("10"),
		CreatedBy: f.staff.ID, Status: models.StatusApproved,
	}
	if err := f.store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	got, err := f.svc.SubmitReceipt(ctx, f.staff, req.ID, "receipt.txt", []byte("Total: $10.00"))
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}
	if got.ReceiptValidation == nil || got.ReceiptValidation.IsValid {
		t.Errorf("missing PO should record an invalid result: %+v", got.ReceiptValidation)
	}
}

func TestGet_visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req, err := f.svc.Create(ctx, f.staff, input("Chairs", "10"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Get(ctx, f.staff, req.ID); err != nil {
		t.Errorf("creator get: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.approver, req.ID); err != nil {
		t.Errorf("approver get: %v", err)
	}
	other := f.user(t, "mallory", models.RoleStaff)
	if _, err := f.svc.Get(ctx, other, req.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other staff get: got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.staff, 9999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing id: got %v", err)
	}
}

func TestList_roleFiltering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.user(t, "bob", models.RoleStaff)

	mine, err := f.svc.Create(ctx, f.staff, input("Mine", "10"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	theirs, err := f.svc.Create(ctx, other, input("Theirs", "10"), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Approve(ctx, f.approver, theirs.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	staffView, err := f.svc.List(ctx, f.staff)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(staffView) != 1 || staffView[0].ID != mine.ID {
		t.Errorf("staff view: %d requests", len(staffView))
	}

	l1View, err := f.svc.List(ctx, f.approver)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(l1View) != 2 {
		t.Errorf("level 1 view: %d requests", len(l1View))
	}

	l2View, err := f.svc.List(ctx, f.senior)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(l2View) != 1 || l2View[0].ID != theirs.ID {
		t.Errorf("level 2 view: %d requests", len(l2View))
	}

	financeView, err := f.svc.List(ctx, f.finance)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(financeView) != 2 {
		t.Errorf("finance view: %d requests", len(financeView))
	}
}
