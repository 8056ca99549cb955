package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "bills.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBill(id, creator string, createdAt int64) *models.Bill {
	return &models.Bill{
		ID:            id,
		Title:         "Makan Siang",
		CreatorUserID: creator,
		DestWalletID:  "wallet-1",
		Items: []models.Item{
			{LineID: "L001", Name: "Nasi", Quantity: 2, UnitPrice: 10000, LineSubtotal: 20000},
		},
		Components: models.BillComponents{ItemsSubtotal: 20000, Total: 20000},
		Members: []models.Member{
			{ID: "M1", Ref: models.MemberRef{UserID: "user-b", Name: "Budi"}, AmountDue: 10000, Status: models.MemberPending},
			{ID: "M2", Ref: models.MemberRef{Name: "Citra"}, AmountDue: 10000, Status: models.MemberPending},
		},
		Status:    models.BillSent,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestBillRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	bill := testBill("bill-1", "user-a", 1000)
	if err := store.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	got, err := store.GetBill(ctx, "bill-1")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if got.Title != bill.Title || len(got.Members) != 2 || got.Members[0].ID != "M1" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := store.GetBill(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBill(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdateBillVersionCheck(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	bill := testBill("bill-1", "user-a", 1000)
	if err := store.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	bill.Members[0].Status = models.MemberPaid
	bill.Members[0].Paid = 10000
	bill.PaidTotal = 10000
	bill.Status = models.BillPartiallyPaid
	if err := store.UpdateBill(ctx, bill, 1); err != nil {
		t.Fatalf("UpdateBill: %v", err)
	}
	if bill.Version != 2 {
		t.Errorf("version = %d, want 2", bill.Version)
	}

	// Stale writer loses.
	stale := testBill("bill-1", "user-a", 1000)
	if err := store.UpdateBill(ctx, stale, 1); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("stale UpdateBill = %v, want ErrConflict", err)
	}

	missing := testBill("bill-2", "user-a", 1000)
	if err := store.UpdateBill(ctx, missing, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateBill(missing) = %v, want ErrNotFound", err)
	}

	got, err := store.GetBill(ctx, "bill-1")
	if err != nil {
		t.Fatalf("GetBill: %v", err)
	}
	if got.PaidTotal != 10000 || got.Status != models.BillPartiallyPaid {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestListOwnedAndAssigned(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"b1", "b2", "b3"} {
		bill := testBill(id, "user-a", int64(1000+i))
		if id == "b3" {
			bill.Status = models.BillPaid
			for j := range bill.Members {
				bill.Members[j].Status = models.MemberPaid
			}
		}
		if err := store.CreateBill(ctx, bill); err != nil {
			t.Fatalf("CreateBill(%s): %v", id, err)
		}
	}

	owned, err := store.ListOwned(ctx, "user-a", storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(owned) != 3 {
		t.Fatalf("got %d owned bills, want 3", len(owned))
	}
	if owned[0].ID != "b3" || owned[2].ID != "b1" {
		t.Errorf("owned not newest first: %s..%s", owned[0].ID, owned[2].ID)
	}

	paidOnly, err := store.ListOwned(ctx, "user-a", storage.ListFilter{Status: "PAID"})
	if err != nil {
		t.Fatalf("ListOwned(PAID): %v", err)
	}
	if len(paidOnly) != 1 || paidOnly[0].ID != "b3" {
		t.Errorf("status filter: got %d bills", len(paidOnly))
	}

	page, err := store.ListOwned(ctx, "user-a", storage.ListFilter{Cursor: owned[0].CreatedAt, Limit: 10})
	if err != nil {
		t.Fatalf("ListOwned(cursor): %v", err)
	}
	if len(page) != 2 || page[0].ID != "b2" {
		t.Errorf("cursor page: got %d bills starting %s", len(page), page[0].ID)
	}

	assigned, err := store.ListAssigned(ctx, "user-b", storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListAssigned: %v", err)
	}
	if len(assigned) != 3 {
		t.Errorf("got %d assigned bills, want 3", len(assigned))
	}

	assignedPaid, err := store.ListAssigned(ctx, "user-b", storage.ListFilter{Status: "PAID"})
	if err != nil {
		t.Fatalf("ListAssigned(PAID): %v", err)
	}
	if len(assignedPaid) != 1 || assignedPaid[0].ID != "b3" {
		t.Errorf("assigned status filter: got %d bills", len(assignedPaid))
	}

	none, err := store.ListAssigned(ctx, "user-z", storage.ListFilter{})
	if err != nil {
		t.Fatalf("ListAssigned(none): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d bills for unknown user, want 0", len(none))
	}
}

func TestInsertTokensIgnoresDuplicates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tokens := []*models.Token{
		{Token: "t1", Type: models.TokenOwner, BillID: "b1", ExpiresAt: 5000, CreatedAt: 1000},
		{Token: "t1", Type: models.TokenOwner, BillID: "b1", ExpiresAt: 5000, CreatedAt: 1000},
		{Token: "t2", Type: models.TokenMember, BillID: "b1", MemberID: "M1", ExpiresAt: 5000, CreatedAt: 1000},
	}
	if err := store.InsertTokens(ctx, tokens); err != nil {
		t.Fatalf("InsertTokens: %v", err)
	}

	got, err := store.GetToken(ctx, "t2")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Type != models.TokenMember || got.MemberID != "M1" || got.ExpiresAt != 5000 {
		t.Errorf("token mismatch: %+v", got)
	}

	if _, err := store.GetToken(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetToken(missing) = %v, want ErrNotFound", err)
	}
}

func TestMarkEventProcessed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.MarkEventProcessed(ctx, "tx1", "")
	if err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}
	if !first {
		t.Error("first sighting reported as duplicate")
	}

	again, err := store.MarkEventProcessed(ctx, "tx1", "")
	if err != nil {
		t.Fatalf("MarkEventProcessed(dup): %v", err)
	}
	if again {
		t.Error("duplicate reported as first sighting")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "nested", "deep", "bills.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store.Close()
	if _, err := os.Stat(filepath.Join(dir, "nested", "deep")); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}
