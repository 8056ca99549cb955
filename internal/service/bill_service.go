// Package service orchestrates bill creation and the read-side views. It
// composes the receipt normalizer, the split calculator, the settlement
// ledger and the token service; settlement state itself is only ever
// mutated through the ledger.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/group-2-odp-bni/be-capstone-project/internal/calculator"
	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/metrics"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/receipt"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
)

// Publisher is the outbound event seam. Implementations must be safe for
// concurrent use; the service treats publish failures as warnings except
// where noted.
type Publisher interface {
	BillCreated(ctx context.Context, evt BillCreatedEvent) error
	PaymentIntent(ctx context.Context, evt PaymentIntentEvent) error
	BillReminded(ctx context.Context, evt BillRemindedEvent) error
}

// BillCreatedEvent announces a newly created bill and its short links.
type BillCreatedEvent struct {
	BillID      string             `json:"billId"`
	OwnerUserID string             `json:"ownerUserId"`
	OwnerLink   string             `json:"ownerShortLink"`
	MemberLinks []token.MemberLink `json:"memberLinks"`
	CreatedAt   string             `json:"createdAt"`
}

// PaymentIntentEvent asks the payment workflow to move money for one
// member's share. Settlement comes back asynchronously as a payment
// status event.
type PaymentIntentEvent struct {
	BillID       string `json:"billId"`
	MemberID     string `json:"memberId"`
	Amount       int64  `json:"amount"`
	SourceWallet string `json:"sourceWalletId"`
	DestWallet   string `json:"destinationWalletId"`
	IntentAt     string `json:"intentAt"`
}

// BillRemindedEvent announces a reminder request for the unpaid members.
// Actual delivery (push, WA) is the notification service's job.
type BillRemindedEvent struct {
	BillID      string             `json:"billId"`
	ActorUserID string             `json:"remindedByUserId"`
	Channels    []string           `json:"requestedChannels"`
	MemberLinks []token.MemberLink `json:"memberLinks"`
	RemindedAt  string             `json:"remindedAt"`
}

// BillService exposes the bill lifecycle operations behind the HTTP API.
type BillService struct {
	store  storage.Store
	ledger *ledger.Ledger
	tokens *token.Service
	pub    Publisher

	now   func() time.Time
	newID func() string
}

// New creates a BillService. pub may be nil in tests; events are then
// skipped.
func New(store storage.Store, l *ledger.Ledger, tokens *token.Service, pub Publisher) *BillService {
	return &BillService{
		store:  store,
		ledger: l,
		tokens: tokens,
		pub:    pub,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Assignment claims receipt lines for one member. A line may be claimed by
// several assignments; its subtotal weight is then divided evenly among the
// claimers.
type Assignment struct {
	Ref     models.MemberRef `json:"memberRef"`
	LineIDs []string         `json:"lineIds"`
}

// CreateBillRequest is the decoded bill creation payload. Items and Fees
// are raw extracted records; normalization happens here, not at the edge.
type CreateBillRequest struct {
	Title        string            `json:"title"`
	DestWalletID string            `json:"destinationWalletId"`
	ReceiptURL   string            `json:"imageUrl"`
	Items        []receipt.RawItem `json:"items"`
	Fees         receipt.RawFees   `json:"fees"`
	Assignments  []Assignment      `json:"assignments"`
}

// CreateBillResult is what the creator gets back: the bill id and every
// short link to hand out.
type CreateBillResult struct {
	BillID      string             `json:"billId"`
	Status      models.BillStatus  `json:"status"`
	OwnerLink   string             `json:"ownerShortLink"`
	MemberLinks []token.MemberLink `json:"memberLinks"`
}

// CreateBill normalizes the receipt, allocates the total across the
// assigned members and persists the bill, then issues short links and
// announces the bill on the bus. Token issuance and event publication are
// best-effort: the bill exists once the store write succeeds.
func (s *BillService) CreateBill(ctx context.Context, creatorUserID string, req CreateBillRequest) (*CreateBillResult, error) {
	if req.DestWalletID == "" || len(req.Items) == 0 || len(req.Assignments) == 0 {
		return nil, fmt.Errorf("%w: destinationWalletId, items and assignments are required", ledger.ErrValidation)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Split Bill"
	}

	items := receipt.NormalizeItems(req.Items)
	comps := receipt.ComputeComponents(req.Fees, items)

	members, weights := s.buildMembers(items, req.Assignments)
	shares := calculator.Allocate(comps.Total, weights)
	for i := range members {
		members[i].AmountDue = shares[members[i].ID]
	}

	now := s.now().Unix()
	bill := &models.Bill{
		ID:            s.newID(),
		Title:         title,
		CreatorUserID: creatorUserID,
		DestWalletID:  req.DestWalletID,
		ReceiptURL:    req.ReceiptURL,
		Items:         items,
		Components:    comps,
		Members:       members,
		Status:        models.BillSent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateBill(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to create bill: %w", err)
	}
	metrics.BillsCreated.Inc()
	slog.Info("Bill created",
		"bill_id", bill.ID,
		"creator_user_id", creatorUserID,
		"members", len(members),
		"total", comps.Total)

	issued, err := s.tokens.Issue(ctx, bill)
	if err != nil {
		// The bill is live either way; links can be re-issued later.
		slog.Error("Short link issuance failed", "bill_id", bill.ID, "error", err)
		return &CreateBillResult{BillID: bill.ID, Status: bill.Status}, nil
	}
	s.attachLinks(ctx, bill, issued)

	if s.pub != nil {
		evt := BillCreatedEvent{
			BillID:      bill.ID,
			OwnerUserID: creatorUserID,
			OwnerLink:   issued.OwnerLink,
			MemberLinks: issued.MemberLinks,
			CreatedAt:   s.now().UTC().Format(time.RFC3339),
		}
		if err := s.pub.BillCreated(ctx, evt); err != nil {
			slog.Warn("Failed to publish bill created event", "bill_id", bill.ID, "error", err)
		}
	}

	return &CreateBillResult{
		BillID:      bill.ID,
		Status:      bill.Status,
		OwnerLink:   issued.OwnerLink,
		MemberLinks: issued.MemberLinks,
	}, nil
}

// buildMembers derives members and their allocation weights from the
// assignments. A member's weight is the sum of their claimed line
// subtotals, each divided by how many members claimed that line. Unknown
// line ids contribute nothing; a member claiming nothing gets weight zero
// (and falls back to the equal split only if every weight is zero).
func (s *BillService) buildMembers(items []models.Item, assignments []Assignment) ([]models.Member, []calculator.Weight) {
	byLine := make(map[string]*models.Item, len(items))
	for i := range items {
		byLine[items[i].LineID] = &items[i]
	}
	claims := make(map[string]int)
	for _, a := range assignments {
		for _, id := range a.LineIDs {
			if _, ok := byLine[id]; ok {
				claims[id]++
			}
		}
	}

	members := make([]models.Member, 0, len(assignments))
	weights := make([]calculator.Weight, 0, len(assignments))
	for _, a := range assignments {
		ref := a.Ref
		ref.Phone = normalizePhone(ref.Phone)

		var assigned []models.Item
		var weight float64
		for _, id := range a.LineIDs {
			it, ok := byLine[id]
			if !ok {
				continue
			}
			assigned = append(assigned, *it)
			weight += float64(it.LineSubtotal) / float64(claims[id])
		}

		id := s.newID()
		members = append(members, models.Member{
			ID:     id,
			Ref:    ref,
			Status: models.MemberPending,
			Items:  assigned,
		})
		weights = append(weights, calculator.Weight{MemberID: id, Value: weight})
	}
	return members, weights
}

// attachLinks writes the issued short links onto the bill document.
// Failure here is logged, not fatal: the links are already persisted as
// token records and resolvable.
func (s *BillService) attachLinks(ctx context.Context, bill *models.Bill, issued *token.IssueResult) {
	byMember := make(map[string]string, len(issued.MemberLinks))
	for _, ml := range issued.MemberLinks {
		byMember[ml.MemberID] = ml.ShortLink
	}
	bill.OwnerLink = issued.OwnerLink
	for i := range bill.Members {
		if link, ok := byMember[bill.Members[i].ID]; ok {
			bill.Members[i].ShortLink = link
		}
	}
	bill.UpdatedAt = s.now().Unix()
	if err := s.store.UpdateBill(ctx, bill, bill.Version); err != nil {
		slog.Warn("Failed to attach short links to bill", "bill_id", bill.ID, "error", err)
	}
}

// normalizePhone canonicalizes an Indonesian phone number to E.164:
// a leading 0 becomes +62, and a bare number gains a +.
func normalizePhone(phone string) string {
	p := strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "0") {
		return "+62" + p[1:]
	}
	if !strings.HasPrefix(p, "+") {
		return "+" + p
	}
	return p
}
