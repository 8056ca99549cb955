package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/receipt"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage/sqlite"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	created []BillCreatedEvent
	intents []PaymentIntentEvent
	reminds []BillRemindedEvent
	fail    bool
}

func (p *capturePublisher) BillCreated(_ context.Context, evt BillCreatedEvent) error {
	if p.fail {
		return errors.New("bus down")
	}
	p.created = append(p.created, evt)
	return nil
}

func (p *capturePublisher) PaymentIntent(_ context.Context, evt PaymentIntentEvent) error {
	if p.fail {
		return errors.New("bus down")
	}
	p.intents = append(p.intents, evt)
	return nil
}

func (p *capturePublisher) BillReminded(_ context.Context, evt BillRemindedEvent) error {
	if p.fail {
		return errors.New("bus down")
	}
	p.reminds = append(p.reminds, evt)
	return nil
}

func setupService(t *testing.T) (*BillService, storage.Store, *capturePublisher) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "bills.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := token.New("test-secret", time.Hour, "http://localhost:8080", store)
	pub := &capturePublisher{}
	svc := New(store, ledger.New(store), tokens, pub)

	// Deterministic member/bill ids for assertions.
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return svc, store, pub
}

func threeWayRequest() CreateBillRequest {
	return CreateBillRequest{
		Title:        "Nasi Padang",
		DestWalletID: "wallet-owner",
		Items: []receipt.RawItem{
			{"nama_item": "Rendang", "kuantitas": 2, "unit_price": 25000},
			{"name": "Es Teh", "qty": 3, "price": 5000},
		},
		Fees: receipt.RawFees{"tax": 6500, "service": 0},
		Assignments: []Assignment{
			{Ref: models.MemberRef{UserID: "user-a", Name: "Andi"}, LineIDs: []string{"L001"}},
			{Ref: models.MemberRef{Name: "Budi", Phone: "081234"}, LineIDs: []string{"L002"}},
		},
	}
}

func TestCreateBill(t *testing.T) {
	svc, store, pub := setupService(t)

	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if res.Status != models.BillSent {
		t.Errorf("status = %s, want SENT", res.Status)
	}
	if res.OwnerLink == "" || len(res.MemberLinks) != 2 {
		t.Fatalf("links = %q / %d members", res.OwnerLink, len(res.MemberLinks))
	}

	bill, err := store.GetBill(context.Background(), res.BillID)
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}

	// Items subtotal 50000+15000, tax 6500: total 71500 split by item
	// subtotal weights (50000 vs 15000).
	if bill.Components.Total != 71500 {
		t.Errorf("total = %d, want 71500", bill.Components.Total)
	}
	var sum int64
	for i := range bill.Members {
		sum += bill.Members[i].AmountDue
	}
	if sum != bill.Components.Total {
		t.Errorf("allocated sum = %d, want %d", sum, bill.Components.Total)
	}
	if bill.Members[0].AmountDue != 55000 {
		t.Errorf("member 0 due = %d, want 55000", bill.Members[0].AmountDue)
	}
	if bill.Members[1].AmountDue != 16500 {
		t.Errorf("member 1 due = %d, want 16500", bill.Members[1].AmountDue)
	}

	if bill.Members[1].Ref.Phone != "+6281234" {
		t.Errorf("phone = %q, want +6281234", bill.Members[1].Ref.Phone)
	}
	if bill.OwnerLink == "" || bill.Members[0].ShortLink == "" {
		t.Error("short links not written back onto the bill")
	}

	if len(pub.created) != 1 || pub.created[0].BillID != res.BillID {
		t.Errorf("bill created events = %+v", pub.created)
	}
}

func TestCreateBillSharedLine(t *testing.T) {
	svc, store, _ := setupService(t)

	req := CreateBillRequest{
		DestWalletID: "wallet-owner",
		Items: []receipt.RawItem{
			{"name": "Pizza", "qty": 1, "price": 90000},
			{"name": "Jus", "qty": 1, "price": 10000},
		},
		Assignments: []Assignment{
			{Ref: models.MemberRef{Name: "A"}, LineIDs: []string{"L001"}},
			{Ref: models.MemberRef{Name: "B"}, LineIDs: []string{"L001", "L002"}},
		},
	}
	res, err := svc.CreateBill(context.Background(), "owner-1", req)
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	bill, _ := store.GetBill(context.Background(), res.BillID)
	// Pizza is shared: 45000 weight each; B also takes the juice.
	if bill.Members[0].AmountDue != 45000 {
		t.Errorf("A due = %d, want 45000", bill.Members[0].AmountDue)
	}
	if bill.Members[1].AmountDue != 55000 {
		t.Errorf("B due = %d, want 55000", bill.Members[1].AmountDue)
	}
}

func TestCreateBillValidation(t *testing.T) {
	svc, _, _ := setupService(t)

	req := threeWayRequest()
	req.DestWalletID = ""
	if _, err := svc.CreateBill(context.Background(), "owner-1", req); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}

	req = threeWayRequest()
	req.Assignments = nil
	if _, err := svc.CreateBill(context.Background(), "owner-1", req); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestCreateBillPublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := setupService(t)
	pub.fail = true

	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill with failing bus: %v", err)
	}
	if res.BillID == "" {
		t.Error("no bill id returned")
	}
}

func TestGetBillDetail(t *testing.T) {
	svc, _, _ := setupService(t)
	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	detail, err := svc.GetBillDetail(context.Background(), res.BillID, "owner-1")
	if err != nil {
		t.Fatalf("GetBillDetail: %v", err)
	}
	if detail.Title != "Nasi Padang" || len(detail.Members) != 2 || detail.UnpaidCount != 2 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Members[0].Name != "Andi" || detail.Members[0].Initial != "A" {
		t.Errorf("member summary = %+v", detail.Members[0])
	}

	if _, err := svc.GetBillDetail(context.Background(), res.BillID, "user-a"); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("member viewing owner detail: got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetBillDetail(context.Background(), "missing", "owner-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetMemberInvoice(t *testing.T) {
	svc, _, _ := setupService(t)
	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	memberID := res.MemberLinks[0].MemberID

	for _, viewer := range []string{"owner-1", "user-a"} {
		inv, err := svc.GetMemberInvoice(context.Background(), res.BillID, memberID, viewer)
		if err != nil {
			t.Fatalf("GetMemberInvoice as %s: %v", viewer, err)
		}
		if inv.TotalDue != 55000 || inv.PayTo.WalletID != "wallet-owner" {
			t.Errorf("invoice = %+v", inv)
		}
		// 50000/65000 of the 6500 tax.
		if inv.FeesShare.Tax != 5000 {
			t.Errorf("tax share = %d, want 5000", inv.FeesShare.Tax)
		}
	}

	if _, err := svc.GetMemberInvoice(context.Background(), res.BillID, memberID, "stranger"); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetMemberInvoice(context.Background(), res.BillID, "ghost", "owner-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestHistory(t *testing.T) {
	svc, _, _ := setupService(t)
	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Hour
		svc.now = func() time.Time { return base.Add(offset) }
		if _, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest()); err != nil {
			t.Fatalf("CreateBill %d: %v", i, err)
		}
	}

	owned, err := svc.ListOwned(context.Background(), "owner-1", storage.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(owned.Items) != 2 {
		t.Fatalf("page size = %d, want 2", len(owned.Items))
	}
	if owned.Items[0].CreatedAt < owned.Items[1].CreatedAt {
		t.Error("not newest first")
	}
	if owned.Items[0].Total != 71500 || owned.Items[0].MemberCount != 2 {
		t.Errorf("summary = %+v", owned.Items[0])
	}

	next, err := svc.ListOwned(context.Background(), "owner-1", storage.ListFilter{Limit: 2, Cursor: owned.NextCursor})
	if err != nil {
		t.Fatalf("ListOwned page 2: %v", err)
	}
	if len(next.Items) != 1 {
		t.Errorf("second page size = %d, want 1", len(next.Items))
	}

	assigned, err := svc.ListAssigned(context.Background(), "user-a", storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListAssigned: %v", err)
	}
	if len(assigned.Items) != 3 {
		t.Fatalf("assigned rows = %d, want 3", len(assigned.Items))
	}
	if assigned.Items[0].MyAmount != 55000 || assigned.Items[0].MyStatus != models.MemberPending {
		t.Errorf("assigned row = %+v", assigned.Items[0])
	}
}

func TestPayIntent(t *testing.T) {
	svc, _, pub := setupService(t)
	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	memberID := res.MemberLinks[0].MemberID

	if err := svc.PayIntent(context.Background(), res.BillID, memberID, "user-a", "wallet-a"); err != nil {
		t.Fatalf("PayIntent: %v", err)
	}
	if len(pub.intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(pub.intents))
	}
	evt := pub.intents[0]
	if evt.Amount != 55000 || evt.SourceWallet != "wallet-a" || evt.DestWallet != "wallet-owner" {
		t.Errorf("intent = %+v", evt)
	}

	if err := svc.PayIntent(context.Background(), res.BillID, memberID, "user-a", ""); !errors.Is(err, ledger.ErrValidation) {
		t.Errorf("missing wallet: got %v, want ErrValidation", err)
	}
	if err := svc.PayIntent(context.Background(), res.BillID, memberID, "stranger", "wallet-x"); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("stranger: got %v, want ErrForbidden", err)
	}
}

func TestRemindUnpaid(t *testing.T) {
	svc, _, pub := setupService(t)
	res, err := svc.CreateBill(context.Background(), "owner-1", threeWayRequest())
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	// Settle the first member; only the second should be reminded.
	led := ledger.New(svc.store)
	if _, err := led.MarkMembersPaid(context.Background(), res.BillID, "owner-1", []string{res.MemberLinks[0].MemberID}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	out, err := svc.RemindUnpaid(context.Background(), res.BillID, "owner-1", nil)
	if err != nil {
		t.Fatalf("RemindUnpaid: %v", err)
	}
	if len(out.MemberLinks) != 1 || out.MemberLinks[0].MemberID != res.MemberLinks[1].MemberID {
		t.Errorf("reminded = %+v", out.MemberLinks)
	}
	if len(out.Channels) != 1 || out.Channels[0] != "wa" {
		t.Errorf("channels = %v, want default [wa]", out.Channels)
	}
	if len(pub.reminds) != 1 {
		t.Errorf("remind events = %d, want 1", len(pub.reminds))
	}

	if _, err := svc.RemindUnpaid(context.Background(), res.BillID, "intruder", nil); !errors.Is(err, ledger.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}
