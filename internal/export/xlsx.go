// Package export produces XLSX workbooks of approved purchase orders.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/openprocure/procflow/internal/models"
	"github.com/openprocure/procflow/internal/storage"
	"github.com/openprocure/procflow/pkg/utils"
)

const sheetName = "Purchase Orders"

// Service builds purchase order exports from stored requests.
type Service struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewService returns an export service.
func NewService(store storage.Storage, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// PurchaseOrdersXLSX returns an XLSX workbook of all approved requests that
// carry a generated purchase order, one row per order.
func (s *Service) PurchaseOrdersXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	requests, err := s.store.ListRequests(ctx, storage.RequestFilter{Status: models.StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("failed to list approved requests: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	index, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(index)

	headers := []string{
		"PO Number",
		"Request",
		"Vendor",
		"Total Amount",
		"Level 1 Approver",
		"Level 2 Approver",
		"Approved Date",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	written := 0
	for _, req := range requests {
		po := req.PurchaseOrderData
		if po == nil {
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, po.PONumber)
		write(2, utils.Truncate(req.Title, 60))
		write(3, po.Vendor)
		write(4, po.TotalAmount)
		write(5, po.ApprovedByLevel1)
		write(6, po.ApprovedByLevel2)
		if req.Level2.ApprovedAt != nil {
			write(7, req.Level2.ApprovedAt.Format("2006-01-02"))
		} else {
			write(7, "")
		}

		row++
		written++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "C", 28)
	_ = f.SetColWidth(sheetName, "D", "D", 14)
	_ = f.SetColWidth(sheetName, "E", "F", 22)
	_ = f.SetColWidth(sheetName, "G", "G", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("purchase orders exported",
		zap.Int("rows", written),
		zap.Duration("elapsed", time.Since(start)))
	return buf.Bytes(), nil
}
