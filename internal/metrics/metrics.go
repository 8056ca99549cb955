// Package metrics defines the Prometheus collectors the backend exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BillsCreated counts successfully created bills.
	BillsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitbill_bills_created_total",
		Help: "Number of bills created.",
	})

	// PaymentEventsApplied counts payment events that mutated the ledger.
	PaymentEventsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitbill_payment_events_applied_total",
		Help: "Number of payment events that resulted in a ledger mutation.",
	})

	// PaymentEventsDuplicate counts events dropped by the idempotency set.
	PaymentEventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitbill_payment_events_duplicate_total",
		Help: "Number of payment events dropped as duplicates.",
	})

	// PaymentEventsIgnored counts events recorded as processed but not
	// applied (unknown outcome, unknown bill or member).
	PaymentEventsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitbill_payment_events_ignored_total",
		Help: "Number of payment events recorded but not applied.",
	})

	// TokenResolutions counts short-link resolutions by result.
	TokenResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitbill_token_resolutions_total",
		Help: "Number of short-link token resolutions.",
	}, []string{"result"})
)
