package constants

// Warning is a stable code attached to a line or an invoice.
// Downstream consumers match on these exact strings.
type Warning string

// Line-level codes.
const (
	WarnUPCMissing         Warning = "UPC_MISSING"
	WarnUPCShort           Warning = "UPC_SHORT"
	WarnZeroQty            Warning = "ZERO_QTY"
	WarnQtyCorrected       Warning = "QTY_CORRECTED"
	WarnQtyNegativeClamped Warning = "QTY_NEGATIVE_CLAMPED"
	WarnNetCostMissing     Warning = "NET_COST_MISSING"
	WarnNetCostZero        Warning = "NET_COST_ZERO"
)

// Invoice-level codes.
const (
	WarnInvoiceTotalMissing Warning = "INVOICE_TOTAL_MISSING"
	WarnTotalMismatch       Warning = "TOTAL_MISMATCH_NEEDS_REVIEW"
	WarnRetryFailed         Warning = "RETRY_FAILED"
	WarnNoItems             Warning = "NO_ITEMS"
)

// UPCWidth is the fixed width of the UPC field in the downstream record format.
const UPCWidth = 11

// MaxUnitsPerCase bounds the sub-case packaging multiplier.
const MaxUnitsPerCase = 200
