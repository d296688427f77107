package entity

import (
	"slices"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
)

// RawLineItem is one line as returned by the extraction service. Every field holds the
// decoded JSON value untouched: string, number, nil, or something unexpected.
type RawLineItem struct {
	UPC         any `json:"upc,omitempty"`
	Description any `json:"description,omitempty"`
	SKU         any `json:"sku,omitempty"`
	NetCost     any `json:"netCost,omitempty"`
	LineAmount  any `json:"lineAmount,omitempty"`
	QtyOrdered  any `json:"qtyOrdered,omitempty"`
	RawLine     any `json:"rawLine,omitempty"`
}

// RawInvoice is the untrusted extraction response.
type RawInvoice struct {
	VendorName   any           `json:"vendorName,omitempty"`
	InvoiceDate  any           `json:"invoiceDate,omitempty"`
	InvoiceTotal any           `json:"invoiceTotal,omitempty"`
	Items        []RawLineItem `json:"items,omitempty"`
}

// NormalizedLineItem is a validated line. Field names are part of the output contract.
type NormalizedLineItem struct {
	UPC            string              `json:"upc"`
	UPCDigits      string              `json:"upcDigits"`
	Description    string              `json:"description"`
	SKU            string              `json:"sku"`
	SKUDigits      string              `json:"skuDigits"`
	NetCost        float64             `json:"netCost"`
	LineAmount     *float64            `json:"lineAmount"`
	RawLine        string              `json:"rawLine"`
	MasterCaseSize *int                `json:"masterCaseSize"`
	QtyHint        *int                `json:"qtyHint,omitempty"`
	UnitsPerCase   int                 `json:"unitsPerCase"`
	QtyOrdered     int                 `json:"qtyOrdered"`
	LineTotal      float64             `json:"lineTotal"`
	MarginPct      float64             `json:"marginPct"`
	MarginWarning  bool                `json:"marginWarning"`
	Warnings       []constants.Warning `json:"warnings"`
}

// Invoice is the normalized result returned to callers.
type Invoice struct {
	VendorName   string               `json:"vendorName"`
	VendorKey    string               `json:"vendorKey"`
	InvoiceDate  string               `json:"invoiceDate"`
	InvoiceTotal *float64             `json:"invoiceTotal"`
	GrandTotal   float64              `json:"grandTotal"`
	TotalMatches bool                 `json:"totalMatches"`
	Warnings     []constants.Warning  `json:"warnings"`
	Items        []NormalizedLineItem `json:"items"`
}

// AddWarning appends w unless it is already present.
func (inv *Invoice) AddWarning(w constants.Warning) {
	inv.Warnings = AppendWarning(inv.Warnings, w)
}

// AppendWarning appends w to ws unless it is already present.
func AppendWarning(ws []constants.Warning, w constants.Warning) []constants.Warning {
	if slices.Contains(ws, w) {
		return ws
	}
	return append(ws, w)
}

// HasWarning reports whether w is in ws.
func HasWarning(ws []constants.Warning, w constants.Warning) bool {
	return slices.Contains(ws, w)
}
