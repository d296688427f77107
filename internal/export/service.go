package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
)

const (
	SummarySheet = "Invoice"
	LinesSheet   = "Lines"
)

var lineHeaders = []string{
	"UPC",
	"Description",
	"SKU",
	"Net Cost",
	"Qty Ordered",
	"Units/Case",
	"Line Total",
	"Line Amount",
	"Margin %",
	"Margin Warning",
	"Warnings",
}

// Service renders normalized invoices as XLSX for accounting hand-off.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// InvoiceXLSX returns a workbook (as bytes) with a summary sheet and one row per line.
func (s *Service) InvoiceXLSX(ctx context.Context, inv entity.Invoice) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	// the default workbook ships with Sheet1; reuse it as the summary
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(LinesSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}

	printed := any("")
	if inv.InvoiceTotal != nil {
		printed = *inv.InvoiceTotal
	}
	summary := [][2]any{
		{"Vendor", inv.VendorName},
		{"Vendor Key", inv.VendorKey},
		{"Invoice Date", inv.InvoiceDate},
		{"Printed Total", printed},
		{"Computed Total", inv.GrandTotal},
		{"Total Matches", inv.TotalMatches},
		{"Warnings", joinWarnings(inv.Warnings)},
		{"Lines", len(inv.Items)},
	}
	for i, kv := range summary {
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &[]any{kv[0], kv[1]}); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SetSheetRow(LinesSheet, "A1", &lineHeaders); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	for i, it := range inv.Items {
		lineAmount := any("")
		if it.LineAmount != nil {
			lineAmount = *it.LineAmount
		}
		row := []any{
			it.UPCDigits,
			truncate(it.Description, 140),
			it.SKU,
			it.NetCost,
			it.QtyOrdered,
			it.UnitsPerCase,
			it.LineTotal,
			lineAmount,
			it.MarginPct,
			it.MarginWarning,
			joinWarnings(it.Warnings),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(LinesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write line %d: %w", i, err)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(SummarySheet, "A", "A", 18)
	_ = f.SetColWidth(SummarySheet, "B", "B", 36)
	_ = f.SetColWidth(LinesSheet, "A", "A", 14) // upc
	_ = f.SetColWidth(LinesSheet, "B", "B", 40) // description
	_ = f.SetColWidth(LinesSheet, "C", "J", 12)
	_ = f.SetColWidth(LinesSheet, "K", "K", 36) // warnings

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"vendor_key", inv.VendorKey,
		"rows", len(inv.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinWarnings(ws []constants.Warning) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = string(w)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
