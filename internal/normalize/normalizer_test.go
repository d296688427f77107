package normalize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
	"github.com/joseph-ayodele/invoice-normalizer/internal/vendors"
)

func f64(v float64) *float64 { return &v }

func newTestNormalizer() *Normalizer {
	return NewNormalizer(vendors.NewRegistry(), Config{}, nil)
}

func TestCorrectQuantity(t *testing.T) {
	tests := []struct {
		name        string
		extracted   int
		netCost     float64
		lineAmount  *float64
		want        int
		wantChanged bool
	}{
		{"zero amount forces zero", 7, 10.00, f64(0.00), 0, true},
		{"near zero amount", 3, 10.00, f64(0.004), 0, true},
		{"zero amount already zero", 0, 10.00, f64(0), 0, false},
		{"inferred within one percent", 4, 5.00, f64(24.90), 5, true},
		{"inferred matches extracted", 3, 12.00, f64(36.00), 3, false},
		{"outside tolerance", 4, 5.00, f64(27.60), 4, false},
		{"no line amount", 4, 5.00, nil, 4, false},
		{"no cost", 4, 0, f64(20), 4, false},
		{"negative amount", 2, 5.00, f64(-10.00), 2, false},
		{"too large", 1, 0.01, f64(150.00), 1, false},
		{"small amount absolute tolerance", 1, 0.99, f64(2.00), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := CorrectQuantity(tt.extracted, tt.netCost, tt.lineAmount)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestNormalizeLine_ExplicitZeroQtyPreserved(t *testing.T) {
	n := newTestNormalizer()
	rs := vendors.DefaultRuleSet()

	for _, qty := range []any{"0", 0.0, "O"} {
		line := n.NormalizeLine(rs, entity.RawLineItem{
			UPC:        "012345678905",
			NetCost:    "8.00",
			LineAmount: "16.00",
			QtyOrdered: qty,
		})
		assert.Equal(t, 0, line.QtyOrdered, "qty %#v", qty)
		assert.Equal(t, 0.0, line.LineTotal)
		assert.Contains(t, line.Warnings, constants.WarnZeroQty)
		assert.NotContains(t, line.Warnings, constants.WarnQtyCorrected)
	}
}

func TestNormalizeLine_ZeroLineAmountOverridesQty(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC:        "012345678905",
		NetCost:    10.00,
		LineAmount: 0.00,
		QtyOrdered: 6,
	})
	assert.Equal(t, 0, line.QtyOrdered)
	assert.Equal(t, []constants.Warning{constants.WarnQtyCorrected, constants.WarnZeroQty}, line.Warnings)
}

func TestNormalizeLine_CorrectedFromLineAmount(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC:        "01234567890",
		NetCost:    "5.00",
		LineAmount: "24.90",
		QtyOrdered: "4",
	})
	assert.Equal(t, 5, line.QtyOrdered)
	assert.Equal(t, 25.0, line.LineTotal)
	assert.Equal(t, []constants.Warning{constants.WarnQtyCorrected}, line.Warnings)
}

func TestNormalizeLine_MissingQtyInferred(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC:        "01234567890",
		NetCost:    "2.50",
		LineAmount: "10.00",
	})
	assert.Equal(t, 4, line.QtyOrdered)
	assert.Contains(t, line.Warnings, constants.WarnQtyCorrected)
}

func TestNormalizeLine_Warnings(t *testing.T) {
	n := newTestNormalizer()
	rs := vendors.DefaultRuleSet()

	line := n.NormalizeLine(rs, entity.RawLineItem{QtyOrdered: "2"})
	assert.Equal(t, []constants.Warning{constants.WarnUPCMissing, constants.WarnNetCostMissing}, line.Warnings)
	assert.True(t, line.MarginWarning)
	assert.Nil(t, line.LineAmount)

	line = n.NormalizeLine(rs, entity.RawLineItem{UPC: "12345", NetCost: "0.00", QtyOrdered: "-3"})
	assert.Equal(t, []constants.Warning{
		constants.WarnUPCShort,
		constants.WarnNetCostZero,
		constants.WarnQtyNegativeClamped,
		constants.WarnZeroQty,
	}, line.Warnings)
	assert.Equal(t, 0, line.QtyOrdered)
}

func TestNormalizeLine_PackagingAndDigits(t *testing.T) {
	n := newTestNormalizer()
	rs, _ := vendors.NewRegistry().Lookup("BONBRIGHTDISTR")

	line := n.NormalizeLine(rs, entity.RawLineItem{
		UPC:         "0 49000 02890 4",
		SKU:         "SKU-7781",
		Description: "COKE 6PK 12OZ",
		NetCost:     "$18.40",
		QtyOrdered:  "2",
		RawLine:     "7781 COKE 6PK 12OZ CS000001 +0002 36.80",
	})
	require.NotNil(t, line.MasterCaseSize)
	assert.Equal(t, 1, *line.MasterCaseSize)
	require.NotNil(t, line.QtyHint)
	assert.Equal(t, 2, *line.QtyHint)
	assert.Equal(t, 4, line.UnitsPerCase)
	assert.Equal(t, "04900002890", line.UPCDigits)
	assert.Equal(t, "0 49000 02890 4", line.UPC)
	assert.Equal(t, "7781", line.SKUDigits)
	assert.Equal(t, 36.80, line.LineTotal)
	assert.Empty(t, line.Warnings)
}

func TestNormalizeLine_Margin(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC: "01234567890", NetCost: "12.00", QtyOrdered: "1",
	})
	// markup 1.35 gives (1.35-1)/1.35
	assert.InDelta(t, 25.93, line.MarginPct, 0.001)
	assert.False(t, line.MarginWarning)

	strict := NewNormalizer(nil, Config{MarginLowPct: 30}, nil)
	line = strict.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC: "01234567890", NetCost: "12.00", QtyOrdered: "1",
	})
	assert.True(t, line.MarginWarning)
}

func TestNormalize_Invoice(t *testing.T) {
	n := newTestNormalizer()
	inv := n.Normalize(context.Background(), entity.RawInvoice{
		VendorName:   "Bon Bright Distr.",
		InvoiceDate:  "2024-03-01",
		InvoiceTotal: "61.35",
		Items: []entity.RawLineItem{
			{UPC: "01234567890", NetCost: "12.00", QtyOrdered: "3"},
			{UPC: "01234567891", NetCost: "8.45", QtyOrdered: "3"},
		},
	})
	assert.Equal(t, "BONBRIGHTDISTR", inv.VendorKey)
	assert.Equal(t, "Bon Bright Distr.", inv.VendorName)
	assert.Equal(t, "2024-03-01", inv.InvoiceDate)
	require.NotNil(t, inv.InvoiceTotal)
	assert.Equal(t, 61.35, *inv.InvoiceTotal)
	assert.Equal(t, 61.35, inv.GrandTotal)
	assert.Len(t, inv.Items, 2)
	assert.Empty(t, inv.Warnings)
}

func TestNormalize_EmptyAndMalformed(t *testing.T) {
	n := newTestNormalizer()
	inv := n.Normalize(context.Background(), entity.RawInvoice{InvoiceTotal: "n/a"})
	assert.Nil(t, inv.InvoiceTotal)
	assert.Equal(t, 0.0, inv.GrandTotal)
	assert.Equal(t, "", inv.VendorKey)
	assert.NotNil(t, inv.Items)
	assert.Equal(t, []constants.Warning{constants.WarnNoItems}, inv.Warnings)
}

func TestNormalize_GrandTotalIsSumOfRoundedLines(t *testing.T) {
	n := newTestNormalizer()
	inv := n.Normalize(context.Background(), entity.RawInvoice{
		Items: []entity.RawLineItem{
			{UPC: "01234567890", NetCost: "0.335", QtyOrdered: "1"},
			{UPC: "01234567890", NetCost: "0.335", QtyOrdered: "1"},
		},
	})
	assert.Equal(t, 0.34, inv.Items[0].LineTotal)
	assert.Equal(t, 0.68, inv.GrandTotal)
}

func TestNormalize_ExponentNumbersFromDecoder(t *testing.T) {
	n := newTestNormalizer()
	inv := n.Normalize(context.Background(), entity.RawInvoice{
		VendorName:   "Acme",
		InvoiceTotal: json.Number("1.2e2"),
		Items: []entity.RawLineItem{
			{UPC: "01234567890", NetCost: json.Number("1.2e1"), QtyOrdered: json.Number("1e1")},
		},
	})
	require.NotNil(t, inv.InvoiceTotal)
	assert.Equal(t, 120.0, *inv.InvoiceTotal)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, 12.0, inv.Items[0].NetCost)
	assert.Equal(t, 10, inv.Items[0].QtyOrdered)
	assert.Equal(t, 120.0, inv.GrandTotal)
}

func TestNormalizeLine_CostWithTrailingAbbreviation(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC: "01234567890", NetCost: "12.50 ea.", QtyOrdered: "2",
	})
	assert.Equal(t, 12.5, line.NetCost)
	assert.Equal(t, 25.0, line.LineTotal)
	assert.NotContains(t, line.Warnings, constants.WarnNetCostMissing)
}

func TestNormalizeLine_HugeFloatQtyIsNotNegative(t *testing.T) {
	n := newTestNormalizer()
	line := n.NormalizeLine(vendors.DefaultRuleSet(), entity.RawLineItem{
		UPC: "01234567890", NetCost: "1.00", QtyOrdered: 1e20,
	})
	assert.NotContains(t, line.Warnings, constants.WarnQtyNegativeClamped)
	assert.Equal(t, 0, line.QtyOrdered)
}
