package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/group-2-odp-bni/be-capstone-project/internal/calculator"
	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
)

// MemberSummary is one row of the owner's bill detail member list.
type MemberSummary struct {
	MemberID string              `json:"memberId"`
	Name     string              `json:"name"`
	Initial  string              `json:"initial"`
	Amount   int64               `json:"amount"`
	Paid     int64               `json:"paid"`
	Status   models.MemberStatus `json:"status"`
}

// BillDetail is the owner's full view of a bill.
type BillDetail struct {
	BillID       string                `json:"billId"`
	Title        string                `json:"title"`
	CreatorID    string                `json:"creatorUserId"`
	DestWalletID string                `json:"destinationWalletId"`
	ReceiptURL   string                `json:"imageUrl,omitempty"`
	Status       models.BillStatus     `json:"status"`
	Items        []models.Item         `json:"items"`
	Components   models.BillComponents `json:"components"`
	Members      []MemberSummary       `json:"members"`
	PaidTotal    int64                 `json:"paidTotal"`
	UnpaidCount  int                   `json:"unpaidCount"`
	OwnerLink    string                `json:"ownerShortLink,omitempty"`
}

// GetBillDetail returns the owner's view of a bill. Only the creator may
// see the whole bill; members go through their invoice instead.
func (s *BillService) GetBillDetail(ctx context.Context, billID, viewerUserID string) (*BillDetail, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.CreatorUserID != viewerUserID {
		return nil, ledger.ErrForbidden
	}

	members := make([]MemberSummary, 0, len(bill.Members))
	for i := range bill.Members {
		m := &bill.Members[i]
		members = append(members, MemberSummary{
			MemberID: m.ID,
			Name:     displayName(m.Ref),
			Initial:  initialOf(m.Ref),
			Amount:   m.AmountDue,
			Paid:     m.Paid,
			Status:   m.Status,
		})
	}

	return &BillDetail{
		BillID:       bill.ID,
		Title:        bill.Title,
		CreatorID:    bill.CreatorUserID,
		DestWalletID: bill.DestWalletID,
		ReceiptURL:   bill.ReceiptURL,
		Status:       bill.Status,
		Items:        bill.Items,
		Components:   bill.Components,
		Members:      members,
		PaidTotal:    bill.PaidTotal,
		UnpaidCount:  bill.UnpaidCount(),
		OwnerLink:    bill.OwnerLink,
	}, nil
}

// PayTo tells a member where their share goes.
type PayTo struct {
	WalletID string `json:"walletId"`
	UserID   string `json:"userId"`
}

// MemberInvoice is the addressed member's view of their share.
type MemberInvoice struct {
	BillID     string              `json:"billId"`
	MemberID   string              `json:"memberId"`
	Title      string              `json:"title"`
	ReceiptURL string              `json:"receiptUrl,omitempty"`
	PayTo      PayTo               `json:"payTo"`
	Name       string              `json:"memberName"`
	Initial    string              `json:"memberInitial"`
	Items      []models.Item       `json:"myItems"`
	FeesShare  calculator.FeeShare `json:"feesShare"`
	TotalDue   int64               `json:"totalDue"`
	Paid       int64               `json:"paid"`
	Status     models.MemberStatus `json:"status"`
}

// GetMemberInvoice returns one member's invoice. Visible to the bill
// owner and to the addressed member (matched by user id).
//
// The fee share breakdown is display math, rounded per fee; the binding
// figure is TotalDue, fixed at allocation time.
func (s *BillService) GetMemberInvoice(ctx context.Context, billID, memberID, viewerUserID string) (*MemberInvoice, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	m := bill.Member(memberID)
	if m == nil {
		return nil, fmt.Errorf("member %s: %w", memberID, storage.ErrNotFound)
	}
	isOwner := viewerUserID == bill.CreatorUserID
	isMember := m.Ref.UserID != "" && viewerUserID == m.Ref.UserID
	if !isOwner && !isMember {
		return nil, ledger.ErrForbidden
	}

	return &MemberInvoice{
		BillID:     bill.ID,
		MemberID:   m.ID,
		Title:      bill.Title,
		ReceiptURL: bill.ReceiptURL,
		PayTo:      PayTo{WalletID: bill.DestWalletID, UserID: bill.CreatorUserID},
		Name:       displayName(m.Ref),
		Initial:    initialOf(m.Ref),
		Items:      m.Items,
		FeesShare:  calculator.MemberFeeShare(bill.Components, m.Items),
		TotalDue:   m.AmountDue,
		Paid:       m.Paid,
		Status:     m.Status,
	}, nil
}

// OwnedSummary is one row of the creator's bill history.
type OwnedSummary struct {
	BillID      string            `json:"billId"`
	Title       string            `json:"title"`
	CreatedAt   int64             `json:"createdAt"`
	Total       int64             `json:"total"`
	PaidTotal   int64             `json:"paidTotal"`
	MemberCount int               `json:"memberCount"`
	UnpaidCount int               `json:"unpaidCount"`
	Status      models.BillStatus `json:"status"`
}

// AssignedSummary is one row of the member-side bill history.
type AssignedSummary struct {
	BillID    string              `json:"billId"`
	MemberID  string              `json:"memberId"`
	Title     string              `json:"title"`
	OwnerID   string              `json:"ownerUserId"`
	MyAmount  int64               `json:"myAmount"`
	MyStatus  models.MemberStatus `json:"myStatus"`
	CreatedAt int64               `json:"createdAt"`
}

// HistoryPage carries one page of history rows plus the cursor for the
// next page (zero when this was the last page).
type HistoryPage[T any] struct {
	Items      []T   `json:"items"`
	NextCursor int64 `json:"nextCursor,omitempty"`
}

// ListOwned returns the bills the user created, newest first.
func (s *BillService) ListOwned(ctx context.Context, userID string, f storage.ListFilter) (*HistoryPage[OwnedSummary], error) {
	bills, err := s.store.ListOwned(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned bills: %w", err)
	}

	page := &HistoryPage[OwnedSummary]{Items: make([]OwnedSummary, 0, len(bills))}
	for _, b := range bills {
		page.Items = append(page.Items, OwnedSummary{
			BillID:      b.ID,
			Title:       b.Title,
			CreatedAt:   b.CreatedAt,
			Total:       b.Components.Total,
			PaidTotal:   b.PaidTotal,
			MemberCount: len(b.Members),
			UnpaidCount: b.UnpaidCount(),
			Status:      b.Status,
		})
	}
	if len(bills) > 0 {
		page.NextCursor = bills[len(bills)-1].CreatedAt
	}
	return page, nil
}

// ListAssigned returns the bills where the user appears as a member,
// newest first, with their own share and status.
func (s *BillService) ListAssigned(ctx context.Context, userID string, f storage.ListFilter) (*HistoryPage[AssignedSummary], error) {
	bills, err := s.store.ListAssigned(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned bills: %w", err)
	}

	page := &HistoryPage[AssignedSummary]{Items: make([]AssignedSummary, 0, len(bills))}
	for _, b := range bills {
		mine := memberForUser(b, userID)
		if mine == nil {
			continue
		}
		page.Items = append(page.Items, AssignedSummary{
			BillID:    b.ID,
			MemberID:  mine.ID,
			Title:     b.Title,
			OwnerID:   b.CreatorUserID,
			MyAmount:  mine.AmountDue,
			MyStatus:  mine.Status,
			CreatedAt: b.CreatedAt,
		})
	}
	if len(bills) > 0 {
		page.NextCursor = bills[len(bills)-1].CreatedAt
	}
	return page, nil
}

// PayIntent validates invoice access and publishes a payment intent for
// the member's outstanding share. The response is an acknowledgement;
// settlement arrives later through the payment status consumer. Unlike the
// other publishes this one is load-bearing, so its failure is an error.
func (s *BillService) PayIntent(ctx context.Context, billID, memberID, viewerUserID, sourceWalletID string) error {
	if sourceWalletID == "" {
		return fmt.Errorf("%w: sourceWalletId is required", ledger.ErrValidation)
	}
	inv, err := s.GetMemberInvoice(ctx, billID, memberID, viewerUserID)
	if err != nil {
		return err
	}
	if s.pub == nil {
		return fmt.Errorf("payment bus unavailable")
	}

	evt := PaymentIntentEvent{
		BillID:       billID,
		MemberID:     memberID,
		Amount:       inv.TotalDue,
		SourceWallet: sourceWalletID,
		DestWallet:   inv.PayTo.WalletID,
		IntentAt:     s.now().UTC().Format(time.RFC3339),
	}
	if err := s.pub.PaymentIntent(ctx, evt); err != nil {
		return fmt.Errorf("failed to publish payment intent: %w", err)
	}
	slog.Info("Payment intent published",
		"bill_id", billID, "member_id", memberID, "amount", inv.TotalDue)
	return nil
}

// RemindResult reports whose links a reminder was requested for.
type RemindResult struct {
	Channels    []string           `json:"requestedChannels"`
	MemberLinks []token.MemberLink `json:"memberLinks"`
}

// RemindUnpaid publishes a reminder event carrying the unpaid members'
// short links. Owner only. Delivery is the notification service's
// concern.
func (s *BillService) RemindUnpaid(ctx context.Context, billID, actorUserID string, channels []string) (*RemindResult, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.CreatorUserID != actorUserID {
		return nil, ledger.ErrForbidden
	}
	if len(channels) == 0 {
		channels = []string{"wa"}
	}

	links := make([]token.MemberLink, 0, bill.UnpaidCount())
	for i := range bill.Members {
		m := &bill.Members[i]
		if m.Status == models.MemberPaid {
			continue
		}
		links = append(links, token.MemberLink{
			MemberID:  m.ID,
			UserID:    m.Ref.UserID,
			Phone:     m.Ref.Phone,
			ShortLink: m.ShortLink,
		})
	}

	if s.pub != nil {
		evt := BillRemindedEvent{
			BillID:      billID,
			ActorUserID: actorUserID,
			Channels:    channels,
			MemberLinks: links,
			RemindedAt:  s.now().UTC().Format(time.RFC3339),
		}
		if err := s.pub.BillReminded(ctx, evt); err != nil {
			slog.Warn("Failed to publish reminder event", "bill_id", billID, "error", err)
		}
	}
	return &RemindResult{Channels: channels, MemberLinks: links}, nil
}

func memberForUser(bill *models.Bill, userID string) *models.Member {
	for i := range bill.Members {
		if bill.Members[i].Ref.UserID == userID {
			return &bill.Members[i]
		}
	}
	return nil
}

func displayName(ref models.MemberRef) string {
	switch {
	case ref.Name != "":
		return ref.Name
	case ref.Phone != "":
		return ref.Phone
	case ref.UserID != "":
		return ref.UserID
	default:
		return "Member"
	}
}

func initialOf(ref models.MemberRef) string {
	r := []rune(displayName(ref))
	return strings.ToUpper(string(r[0]))
}
