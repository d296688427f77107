package constants

// ReconcileState is the state of the total reconciliation machine.
type ReconcileState string

const (
	StateUnverified   ReconcileState = "UNVERIFIED"
	StateVerified     ReconcileState = "VERIFIED"
	StateRetryPending ReconcileState = "RETRY_PENDING"
	StateFinal        ReconcileState = "FINAL"
)
