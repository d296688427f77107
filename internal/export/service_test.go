package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
)

func TestInvoiceXLSX_RowsAndSummary(t *testing.T) {
	total := 61.35
	amount := 36.0
	inv := entity.Invoice{
		VendorName:   "Bon Bright Distr",
		VendorKey:    "BONBRIGHTDISTR",
		InvoiceDate:  "2024-03-01",
		InvoiceTotal: &total,
		GrandTotal:   61.35,
		TotalMatches: true,
		Warnings:     []constants.Warning{},
		Items: []entity.NormalizedLineItem{
			{UPCDigits: "04900002890", Description: "COLA 6PK", NetCost: 12, QtyOrdered: 3, UnitsPerCase: 4, LineTotal: 36, LineAmount: &amount},
			{Description: "LIME", NetCost: 9.5, QtyOrdered: 0, UnitsPerCase: 1, Warnings: []constants.Warning{constants.WarnUPCMissing, constants.WarnZeroQty}},
		},
	}

	b, err := NewService(nil).InvoiceXLSX(context.Background(), inv)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(LinesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 lines
	assert.Equal(t, "UPC", rows[0][0])
	assert.Equal(t, "04900002890", rows[1][0])
	assert.Equal(t, "36", rows[1][7])
	assert.Equal(t, "UPC_MISSING,ZERO_QTY", rows[2][10])

	vendor, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Bon Bright Distr", vendor)
	printed, err := f.GetCellValue(SummarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "61.35", printed)
}

func TestInvoiceXLSX_EmptyInvoice(t *testing.T) {
	b, err := NewService(nil).InvoiceXLSX(context.Background(), entity.Invoice{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(LinesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
