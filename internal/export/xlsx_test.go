package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
)

func seedStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	user := &models.User{Username: "alice", Role: models.RoleStaff, PasswordHash: "x"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	now := time.Now()
	approved := &models.PurchaseRequest{
		Title: "Office chairs", Amount: decimal.RequireFromString("150.00"),
		CreatedBy: user.ID, Status: models.StatusApproved,
		Level2: models.Approval{Approved: true, ApproverName: "Omar", ApprovedAt: &now},
		PurchaseOrderData: &models.PurchaseOrder{
			PONumber: "PO-000001", Vendor: "Acme Corp", TotalAmount: "150.00",
			ApprovedByLevel1: "Lena", ApprovedByLevel2: "Omar",
		},
	}
	pending := &models.PurchaseRequest{
		Title: "Desks", Amount: decimal.RequireFromString("900"),
		CreatedBy: user.ID, Status: models.StatusPending,
	}
	for _, req := range []*models.PurchaseRequest{approved, pending} {
		if err := store.CreateRequest(ctx, req); err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if err := store.UpdateRequest(ctx, req); err != nil {
			t.Fatalf("UpdateRequest: %v", err)
		}
	}
	return store
}

func TestPurchaseOrdersXLSX(t *testing.T) {
	store := seedStore(t)
	svc := NewService(store, zap.NewNop())

	data, err := svc.PurchaseOrdersXLSX(context.Background())
	if err != nil {
		t.Fatalf("PurchaseOrdersXLSX: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Header plus the single approved request; the pending one is excluded.
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0] != "PO Number" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "PO-000001" || rows[1][2] != "Acme Corp" || rows[1][3] != "150.00" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestPurchaseOrdersXLSX_empty(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer store.Close()

	svc := NewService(store, zap.NewNop())
	data, err := svc.PurchaseOrdersXLSX(context.Background())
	if err != nil {
		t.Fatalf("PurchaseOrdersXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want header only", len(rows))
	}
}
