package models

// BillStatus is the settlement state of a whole bill. It is a pure function
// of the member statuses and must never be mutated directly.
type BillStatus string

const (
	// BillSent means no member has paid yet.
	BillSent BillStatus = "SENT"
	// BillPartiallyPaid means at least one, but not all, members have paid.
	BillPartiallyPaid BillStatus = "PARTIALLY_PAID"
	// BillPaid means every member has paid.
	BillPaid BillStatus = "PAID"
)

// MemberStatus is the settlement state of a single member.
type MemberStatus string

const (
	MemberPending MemberStatus = "PENDING"
	MemberPaid    MemberStatus = "PAID"
)

// Payment methods recorded on a member once they reach PAID.
const (
	PaymentMethodManual = "MANUAL_CONFIRMATION"
	PaymentMethodWallet = "WALLET_TRANSFER"
)

// BillComponents is the monetary breakdown of a bill, computed once at
// creation. Total is the externally stated receipt total when one was
// extracted, otherwise the sum of the other components.
type BillComponents struct {
	ItemsSubtotal int64 `json:"itemsSubtotal" bson:"items_subtotal"`
	Tax           int64 `json:"tax" bson:"tax"`
	Service       int64 `json:"service" bson:"service"`
	Tip           int64 `json:"tip" bson:"tip"`
	Total         int64 `json:"total" bson:"total"`
}

// MemberRef identifies who a member is: a registered user, a phone contact,
// or just a display name. At least one field is expected to be set.
type MemberRef struct {
	UserID string `json:"userId,omitempty" bson:"user_id,omitempty"`
	Name   string `json:"name,omitempty" bson:"name,omitempty"`
	Phone  string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// FailureNote records the most recent failed payment attempt for a member.
type FailureNote struct {
	Reason string `json:"reason" bson:"reason"`
	At     int64  `json:"at" bson:"at"`
}

// Member is one participant's obligation on a bill. Members are embedded in
// their Bill document and mutated only by the settlement ledger.
//
// Invariant: Paid <= AmountDue, and Status == PAID iff the member has been
// settled (manually or by a captured payment).
type Member struct {
	ID            string       `json:"memberId" bson:"member_id"`
	Ref           MemberRef    `json:"ref" bson:"ref"`
	AmountDue     int64        `json:"amountDue" bson:"amount_due"`
	Paid          int64        `json:"paid" bson:"paid"`
	Status        MemberStatus `json:"status" bson:"status"`
	PaymentMethod string       `json:"paymentMethod,omitempty" bson:"payment_method,omitempty"`
	ShortLink     string       `json:"shortLink,omitempty" bson:"short_link,omitempty"`
	Items         []Item       `json:"items" bson:"items"`
	LastFailure   *FailureNote `json:"lastFailure,omitempty" bson:"last_failure,omitempty"`
}

// Bill is the aggregate root for a split bill.
//
// Invariant: PaidTotal == sum of member Paid amounts, and Status is derived
// from member statuses. Version supports optimistic concurrency: stores must
// only apply an update when the persisted version matches the one the update
// was computed from.
type Bill struct {
	ID            string         `json:"billId" bson:"_id"`
	Title         string         `json:"title" bson:"title"`
	CreatorUserID string         `json:"creatorUserId" bson:"creator_user_id"`
	DestWalletID  string         `json:"destinationWalletId" bson:"destination_wallet_id"`
	ReceiptURL    string         `json:"receiptUrl,omitempty" bson:"receipt_url,omitempty"`
	Items         []Item         `json:"items" bson:"items"`
	Components    BillComponents `json:"components" bson:"components"`
	Members       []Member       `json:"members" bson:"members"`
	PaidTotal     int64          `json:"paidTotal" bson:"paid_total"`
	Status        BillStatus     `json:"status" bson:"status"`
	OwnerLink     string         `json:"ownerShortLink,omitempty" bson:"owner_short_link,omitempty"`
	CreatedAt     int64          `json:"createdAt" bson:"created_at"`
	UpdatedAt     int64          `json:"updatedAt" bson:"updated_at"`
	Version       int64          `json:"-" bson:"version"`
}

// Member returns the member with the given id, or nil.
func (b *Bill) Member(memberID string) *Member {
	for i := range b.Members {
		if b.Members[i].ID == memberID {
			return &b.Members[i]
		}
	}
	return nil
}

// DeriveStatus recomputes the bill status from the member statuses.
// A bill with zero members degenerates to SENT.
func (b *Bill) DeriveStatus() BillStatus {
	if len(b.Members) == 0 {
		return BillSent
	}
	paid := 0
	for i := range b.Members {
		if b.Members[i].Status == MemberPaid {
			paid++
		}
	}
	switch paid {
	case 0:
		return BillSent
	case len(b.Members):
		return BillPaid
	default:
		return BillPartiallyPaid
	}
}

// UnpaidCount returns the number of members not yet PAID.
func (b *Bill) UnpaidCount() int {
	n := 0
	for i := range b.Members {
		if b.Members[i].Status != MemberPaid {
			n++
		}
	}
	return n
}
