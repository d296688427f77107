package normalize

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/common"
	"github.com/joseph-ayodele/invoice-normalizer/internal/entity"
	"github.com/joseph-ayodele/invoice-normalizer/internal/sanitize"
	"github.com/joseph-ayodele/invoice-normalizer/internal/vendors"
)

// Config holds the margin plausibility heuristic.
type Config struct {
	RetailMarkup  float64 // default 1.35
	MarginLowPct  float64 // default 10
	MarginHighPct float64 // default 80
}

// Normalizer turns raw extraction responses into normalized invoices.
// It holds no per-request state and is safe for concurrent use.
type Normalizer struct {
	registry *vendors.Registry
	cfg      Config
	logger   *slog.Logger
}

func NewNormalizer(registry *vendors.Registry, cfg Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = vendors.NewRegistry()
	}
	if cfg.RetailMarkup <= 0 {
		cfg.RetailMarkup = 1.35
	}
	if cfg.MarginLowPct <= 0 {
		cfg.MarginLowPct = 10
	}
	if cfg.MarginHighPct <= 0 {
		cfg.MarginHighPct = 80
	}
	return &Normalizer{registry: registry, cfg: cfg, logger: logger}
}

// Normalize runs every line through the vendor's rule set and computes the grand total.
// It does not reconcile against the printed total.
func (n *Normalizer) Normalize(ctx context.Context, raw entity.RawInvoice) entity.Invoice {
	name := sanitize.Text(raw.VendorName)
	key := vendors.Key(name)
	rs, tier := n.registry.Lookup(key)

	inv := entity.Invoice{
		VendorName:  name,
		VendorKey:   key,
		InvoiceDate: sanitize.Text(raw.InvoiceDate),
		Warnings:    []constants.Warning{},
		Items:       make([]entity.NormalizedLineItem, 0, len(raw.Items)),
	}
	if t := sanitize.ToMoney(raw.InvoiceTotal, 0); t.OK() {
		v := t.Value
		inv.InvoiceTotal = &v
	}

	totals := make([]float64, 0, len(raw.Items))
	corrected := 0
	for i, item := range raw.Items {
		line := n.NormalizeLine(rs, item)
		if entity.HasWarning(line.Warnings, constants.WarnQtyCorrected) {
			corrected++
			n.logger.Debug("normalize.line.qty_corrected",
				"req_id", common.RequestIDFromContext(ctx),
				"vendor_key", key, "line", i, "qty", line.QtyOrdered,
			)
		}
		totals = append(totals, line.LineTotal)
		inv.Items = append(inv.Items, line)
	}
	inv.GrandTotal = sanitize.Sum2(totals...)
	if len(inv.Items) == 0 {
		inv.AddWarning(constants.WarnNoItems)
	}

	n.logger.Info("normalize.invoice.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"vendor_key", key,
		"rule_set", rs.Name,
		"tier", tier,
		"lines", len(inv.Items),
		"qty_corrected", corrected,
		"grand_total", inv.GrandTotal,
	)
	return inv
}

// NormalizeLine normalizes one raw line with the given rule set.
func (n *Normalizer) NormalizeLine(rs vendors.RuleSet, raw entity.RawLineItem) entity.NormalizedLineItem {
	ws := []constants.Warning{}

	upc := sanitize.Text(raw.UPC)
	upcDigits := rs.NormalizeUPC(raw.UPC)
	switch {
	case upcDigits == "":
		ws = append(ws, constants.WarnUPCMissing)
	case len(upcDigits) < constants.UPCWidth:
		ws = append(ws, constants.WarnUPCShort)
	}

	cost := rs.NormalizeNetCost(raw.NetCost)
	netCost := cost.Value
	if netCost < 0 {
		netCost = 0
	}
	switch {
	case !cost.OK():
		ws = append(ws, constants.WarnNetCostMissing)
	case netCost == 0:
		ws = append(ws, constants.WarnNetCostZero)
	}

	var lineAmount *float64
	if amt := sanitize.ToMoney(raw.LineAmount, 0); amt.OK() {
		v := amt.Value
		lineAmount = &v
	}

	desc := sanitize.Text(raw.Description)
	rawLine := sanitize.Text(raw.RawLine)
	caseCode := sanitize.ExtractMasterCase(rawLine)
	units := rs.UnitsPerCase(vendors.UnitsInput{Description: desc, CaseCode: caseCode})

	q := rs.NormalizeQty(raw.QtyOrdered)
	qty := q.Value
	// an explicit zero means "billed as not shipped" and is never corrected upward
	if !(q.OK() && q.Value == 0) {
		var changed bool
		qty, changed = CorrectQuantity(qty, netCost, lineAmount)
		if changed {
			ws = append(ws, constants.WarnQtyCorrected)
		}
	}
	if qty < 0 {
		qty = 0
		ws = append(ws, constants.WarnQtyNegativeClamped)
	}
	if qty == 0 {
		ws = append(ws, constants.WarnZeroQty)
	}

	margin := n.marginPct(netCost, units)
	return entity.NormalizedLineItem{
		UPC:            upc,
		UPCDigits:      upcDigits,
		Description:    desc,
		SKU:            sanitize.Text(raw.SKU),
		SKUDigits:      rs.NormalizeSKU(raw.SKU),
		NetCost:        netCost,
		LineAmount:     lineAmount,
		RawLine:        rawLine,
		MasterCaseSize: caseCode,
		QtyHint:        sanitize.ExtractQtyHint(rawLine),
		UnitsPerCase:   units,
		QtyOrdered:     qty,
		LineTotal:      sanitize.Extend(netCost, qty),
		MarginPct:      sanitize.Round2(margin),
		MarginWarning:  margin < n.cfg.MarginLowPct || margin > n.cfg.MarginHighPct,
		Warnings:       ws,
	}
}

// marginPct estimates the retail margin of one sell unit. It is a plausibility
// heuristic, not a business rule.
func (n *Normalizer) marginPct(netCost float64, unitsPerCase int) float64 {
	unitCost := 0.0
	if unitsPerCase > 0 {
		unitCost = netCost / float64(unitsPerCase)
	}
	retail := unitCost * n.cfg.RetailMarkup
	if retail <= 0 {
		return 0
	}
	return (retail - unitCost) / retail * 100
}
