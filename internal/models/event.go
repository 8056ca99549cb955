package models

// PaymentOutcome is the normalized result of a payment attempt. Raw gateway
// statuses are mapped at the ingestion boundary (CAPTURED -> SUCCESS);
// anything unrecognized stays as-is and is dropped by the ledger after being
// recorded as processed.
type PaymentOutcome string

const (
	PaymentSuccess PaymentOutcome = "SUCCESS"
	PaymentFailed  PaymentOutcome = "FAILED"
)

// PaymentEvent is one payment status update delivered by the event bus.
// Delivery is at-least-once and unordered across bills; TransactionID is the
// idempotency key.
type PaymentEvent struct {
	TransactionID string         `json:"transactionId"`
	BillID        string         `json:"billId"`
	MemberID      string         `json:"memberId"`
	Amount        int64          `json:"amount"`
	Outcome       PaymentOutcome `json:"status"`
	FailureReason string         `json:"failureReason,omitempty"`
}
