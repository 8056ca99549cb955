// Package ledger owns bill and member settlement state. All mutation of a
// bill's members, paid total and derived status funnels through here.
//
// Concurrency model: the bill document is the unit of mutual exclusion.
// Writers targeting the same bill are serialized twice over: a per-bill
// mutex covers racers inside this process, and the store's version-checked
// update (compare-and-swap on the bill's version field, re-read and retried
// on conflict) covers racers in other processes. Operations on different
// bills are fully independent.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/group-2-odp-bni/be-capstone-project/internal/metrics"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

var (
	// ErrForbidden means the actor is not the bill's creator.
	ErrForbidden = errors.New("actor is not the bill owner")

	// ErrValidation means the request itself is malformed.
	ErrValidation = errors.New("invalid request")
)

// casAttempts bounds the re-read-and-retry loop on version conflicts.
const casAttempts = 3

// Ledger applies settlement mutations to bills.
type Ledger struct {
	store storage.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a settlement ledger on top of the given store.
func New(store storage.Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// billLock returns the mutex serializing in-process writers of one bill.
// Locks are never removed; the working set of concurrently settled bills is
// small and entries are a mutex each.
func (l *Ledger) billLock(billID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[billID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[billID] = lk
	}
	return lk
}

// mutateBill runs apply against a fresh read of the bill and persists the
// result with a version check, retrying on conflict. apply reports whether
// anything changed; an unchanged bill is not written.
func (l *Ledger) mutateBill(ctx context.Context, billID string, apply func(*models.Bill) (bool, error)) (*models.Bill, bool, error) {
	lk := l.billLock(billID)
	lk.Lock()
	defer lk.Unlock()

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		bill, err := l.store.GetBill(ctx, billID)
		if err != nil {
			return nil, false, err
		}

		changed, err := apply(bill)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return bill, false, nil
		}

		bill.Status = bill.DeriveStatus()
		bill.UpdatedAt = l.now().Unix()
		err = l.store.UpdateBill(ctx, bill, bill.Version)
		if err == nil {
			return bill, true, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, false, err
		}
		lastErr = err
		slog.Debug("Bill version conflict, retrying", "bill_id", billID, "attempt", attempt+1)
	}
	return nil, false, fmt.Errorf("bill %s: gave up after %d conflicting writes: %w", billID, casAttempts, lastErr)
}

// MarkPaidResult reports the outcome of a manual mark-paid request.
type MarkPaidResult struct {
	Updated      int               `json:"updatedCount"`
	NewStatus    models.BillStatus `json:"newBillStatus"`
	NewPaidTotal int64             `json:"newPaidTotal"`
}

// MarkMembersPaid settles the named members by the owner's manual
// confirmation. Members already PAID (or ids that match nothing) are
// skipped; a request that changes no member is a successful no-op, not an
// error. The member list, paid total, derived status and updated timestamp
// are persisted as one document mutation.
func (l *Ledger) MarkMembersPaid(ctx context.Context, billID, actorID string, memberIDs []string) (*MarkPaidResult, error) {
	if billID == "" || len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: billId and memberIds are required", ErrValidation)
	}

	wanted := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}

	var updated int
	bill, _, err := l.mutateBill(ctx, billID, func(bill *models.Bill) (bool, error) {
		if bill.CreatorUserID != actorID {
			return false, ErrForbidden
		}
		updated = 0
		for i := range bill.Members {
			m := &bill.Members[i]
			if !wanted[m.ID] || m.Status == models.MemberPaid {
				continue
			}
			bill.PaidTotal += m.AmountDue - m.Paid
			m.Status = models.MemberPaid
			m.Paid = m.AmountDue
			m.PaymentMethod = models.PaymentMethodManual
			updated++
		}
		return updated > 0, nil
	})
	if err != nil {
		return nil, err
	}

	return &MarkPaidResult{
		Updated:      updated,
		NewStatus:    bill.DeriveStatus(),
		NewPaidTotal: bill.PaidTotal,
	}, nil
}

// ApplyPaymentEvent applies one payment status update to the ledger,
// at most once per transaction id. It reports whether a ledger mutation was
// persisted.
//
// The transaction id is recorded in the processed-events set before the
// mutation. Recording is a best-effort guard, not a two-phase commit: if
// the idempotency write itself fails the event is still applied (dropping
// legitimate payments is worse than the bounded risk of double application,
// which the member PAID check caps anyway).
//
// Events for unknown bills, unknown members, unparseable outcomes or
// already-PAID members are recorded as processed and dropped without error.
func (l *Ledger) ApplyPaymentEvent(ctx context.Context, evt models.PaymentEvent) (bool, error) {
	if evt.TransactionID == "" {
		return false, fmt.Errorf("%w: transactionId is required", ErrValidation)
	}

	first, err := l.store.MarkEventProcessed(ctx, evt.TransactionID, noteFor(evt))
	if err != nil {
		slog.Warn("Idempotency record failed, applying event anyway",
			"transaction_id", evt.TransactionID, "error", err)
	} else if !first {
		slog.Info("Duplicate payment event dropped", "transaction_id", evt.TransactionID)
		metrics.PaymentEventsDuplicate.Inc()
		return false, nil
	}

	switch evt.Outcome {
	case models.PaymentSuccess, models.PaymentFailed:
	default:
		slog.Warn("Unknown payment outcome ignored",
			"transaction_id", evt.TransactionID, "outcome", string(evt.Outcome))
		metrics.PaymentEventsIgnored.Inc()
		return false, nil
	}

	bill, applied, err := l.mutateBill(ctx, evt.BillID, func(bill *models.Bill) (bool, error) {
		m := bill.Member(evt.MemberID)
		if m == nil {
			return false, nil
		}
		if evt.Outcome == models.PaymentFailed {
			m.LastFailure = &models.FailureNote{
				Reason: evt.FailureReason,
				At:     l.now().Unix(),
			}
			return true, nil
		}
		if m.Status == models.MemberPaid {
			return false, nil
		}
		credited := evt.Amount
		if credited > m.AmountDue {
			// Overpayment: the excess is discarded, not credited
			// anywhere. Explicit policy, see DESIGN.md.
			slog.Warn("Overpayment capped at amount due",
				"transaction_id", evt.TransactionID,
				"member_id", m.ID,
				"amount", evt.Amount,
				"amount_due", m.AmountDue)
			credited = m.AmountDue
		}
		bill.PaidTotal += credited - m.Paid
		m.Status = models.MemberPaid
		m.Paid = credited
		m.PaymentMethod = models.PaymentMethodWallet
		return true, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		// Unknown or unparseable bill id: already recorded processed, drop.
		slog.Warn("Payment event for unknown bill ignored",
			"transaction_id", evt.TransactionID, "bill_id", evt.BillID)
		metrics.PaymentEventsIgnored.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if applied {
		metrics.PaymentEventsApplied.Inc()
		slog.Info("Payment event applied",
			"transaction_id", evt.TransactionID,
			"bill_id", evt.BillID,
			"member_id", evt.MemberID,
			"outcome", string(evt.Outcome),
			"bill_status", string(bill.Status))
	}
	return applied, nil
}

func noteFor(evt models.PaymentEvent) string {
	switch evt.Outcome {
	case models.PaymentSuccess, models.PaymentFailed:
		return ""
	default:
		return "unknown_status:" + string(evt.Outcome)
	}
}
