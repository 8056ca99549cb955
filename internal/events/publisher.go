package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/group-2-odp-bni/be-capstone-project/internal/service"
)

// Publisher publishes bill lifecycle events to JetStream. Implements
// service.Publisher.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a publisher on the given bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", subject, err)
	}
	if _, err := p.bus.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// BillCreated announces a new bill and its short links.
func (p *Publisher) BillCreated(ctx context.Context, evt service.BillCreatedEvent) error {
	return p.publish(ctx, SubjectBillCreated, evt)
}

// PaymentIntent asks the payment workflow to execute one member's payment.
func (p *Publisher) PaymentIntent(ctx context.Context, evt service.PaymentIntentEvent) error {
	return p.publish(ctx, SubjectPaymentIntent, evt)
}

// BillReminded hands a reminder request to the notification service.
func (p *Publisher) BillReminded(ctx context.Context, evt service.BillRemindedEvent) error {
	return p.publish(ctx, SubjectBillReminded, evt)
}
