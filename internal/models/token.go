package models

// TokenType distinguishes owner links from member invoice links.
type TokenType string

const (
	TokenOwner  TokenType = "owner"
	TokenMember TokenType = "member"
)

// Token is a persisted short-link token. The token string itself is
// self-describing (signed payload), but resolution also checks the stored
// record so that tokens can be revoked by deleting them and so that a
// structurally valid token substituted from another record is rejected.
type Token struct {
	Token     string    `json:"token" bson:"token"`
	Type      TokenType `json:"type" bson:"type"`
	BillID    string    `json:"billId" bson:"bill_id"`
	MemberID  string    `json:"memberId,omitempty" bson:"member_id,omitempty"`
	UserID    string    `json:"userId,omitempty" bson:"user_id,omitempty"`
	ExpiresAt int64     `json:"exp" bson:"exp"`
	CreatedAt int64     `json:"createdAt" bson:"created_at"`
}
