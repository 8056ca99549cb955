package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
)

// consumerName is the durable consumer shared by all replicas of this
// service, so the group processes each status update once.
const consumerName = "split-bill-payment-updater"

// statusUpdate is the raw payment gateway message. The gateway speaks in
// its own status vocabulary; mapping to ledger outcomes happens here.
type statusUpdate struct {
	TransactionID string `json:"transactionId"`
	BillID        string `json:"billId"`
	MemberID      string `json:"memberId"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
}

// Consumer feeds payment status updates into the settlement ledger.
type Consumer struct {
	bus    *Bus
	ledger *ledger.Ledger
}

// NewConsumer creates a consumer applying events through the given ledger.
func NewConsumer(bus *Bus, l *ledger.Ledger) *Consumer {
	return &Consumer{bus: bus, ledger: l}
}

// Run creates the durable consumer and processes messages until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (c *Consumer) Run(ctx context.Context) error {
	stream, err := c.bus.js.Stream(ctx, paymentStream)
	if err != nil {
		return err
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: SubjectPaymentStatus,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	})
	if err != nil {
		return err
	}
	slog.Info("Payment status consumer started",
		"stream", paymentStream, "consumer", consumerName, "subject", SubjectPaymentStatus)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("Fetch timeout or error", "error", err)
			continue
		}
		for msg := range msgs.Messages() {
			c.handle(ctx, msg)
		}
		if err := msgs.Error(); err != nil && err != context.DeadlineExceeded {
			slog.Warn("Message fetch error", "error", err)
		}
	}
}

// handle applies one status update. Malformed messages are acked and
// dropped (redelivery cannot fix them); infrastructure failures are NAKed
// so the broker redelivers.
func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	var raw statusUpdate
	if err := json.Unmarshal(msg.Data(), &raw); err != nil {
		slog.Error("Unparseable payment status message dropped", "error", err)
		ack(msg)
		return
	}

	evt := models.PaymentEvent{
		TransactionID: raw.TransactionID,
		BillID:        raw.BillID,
		MemberID:      raw.MemberID,
		Amount:        raw.Amount,
		Outcome:       mapGatewayStatus(raw.Status),
		FailureReason: raw.FailureReason,
	}

	if _, err := c.ledger.ApplyPaymentEvent(ctx, evt); err != nil {
		if errors.Is(err, ledger.ErrValidation) {
			slog.Warn("Invalid payment status message dropped",
				"transaction_id", raw.TransactionID, "error", err)
			ack(msg)
			return
		}
		slog.Error("Failed to apply payment event, will redeliver",
			"transaction_id", raw.TransactionID, "error", err)
		if err := msg.Nak(); err != nil {
			slog.Warn("Failed to NAK message", "error", err)
		}
		return
	}
	ack(msg)
}

func ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		slog.Warn("Failed to ACK message", "error", err)
	}
}

// mapGatewayStatus translates the gateway's status vocabulary to ledger
// outcomes. Anything unrecognized passes through and is recorded-ignored
// by the ledger.
func mapGatewayStatus(status string) models.PaymentOutcome {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "CAPTURED", "SUCCESS":
		return models.PaymentSuccess
	case "FAILED":
		return models.PaymentFailed
	default:
		return models.PaymentOutcome(status)
	}
}
