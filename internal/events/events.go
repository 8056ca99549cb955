// Package events is the NATS JetStream boundary: it publishes the bill
// lifecycle events and consumes payment status updates from the payment
// workflow.
//
// Delivery is at-least-once; downstream idempotency is the ledger's
// processed-transaction set, not the broker's.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Subjects carried on the splitbill and payment streams.
const (
	SubjectBillCreated   = "splitbill.events.created"
	SubjectBillReminded  = "splitbill.events.reminded"
	SubjectPaymentIntent = "payment.intent.created"
	SubjectPaymentStatus = "payment.status.updated.v1"
)

const (
	splitbillStream = "SPLITBILL"
	paymentStream   = "PAYMENTS"
)

// Bus wraps one NATS connection and its JetStream context.
type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and ensures the streams this service publishes to and
// consumes from exist.
func Connect(ctx context.Context, url string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to init jetstream: %w", err)
	}

	streams := []jetstream.StreamConfig{
		{
			Name:     splitbillStream,
			Subjects: []string{"splitbill.events.>"},
		},
		{
			Name:     paymentStream,
			Subjects: []string{"payment.intent.>", "payment.status.>"},
		},
	}
	for _, sc := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, sc); err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to ensure stream %s: %w", sc.Name, err)
		}
	}

	return &Bus{nc: nc, js: js}, nil
}

// Close drains and closes the connection.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Drain()
	}
}

// Healthy reports whether the NATS connection is up.
func (b *Bus) Healthy() bool {
	return b.nc != nil && b.nc.IsConnected()
}
