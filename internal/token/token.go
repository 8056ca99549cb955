// Package token implements the stateless signed short-link scheme that
// stands in for owner and member invoice URLs.
//
// Wire format (fixed for cross-version compatibility):
//
//	base64url(payload) + "." + base64url(hmacSHA256(secret, payload))
//
// with unpadded base64url on both parts and
// payload = "{type}.{billId}.{memberId-or-empty}.{expiryEpochSeconds}".
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

// ErrInvalidToken covers every way a token can fail resolution: malformed,
// bad signature, unknown, tampered or expired. Callers treat them all the
// same way (403), so one sentinel with wrapped detail is enough.
var ErrInvalidToken = errors.New("invalid or expired token")

// Service issues and resolves short-link tokens.
type Service struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	store   storage.Store
	now     func() time.Time
}

// New creates a token service. secret signs payloads, ttl bounds token
// lifetime and baseURL is the public prefix short links are built on.
func New(secret string, ttl time.Duration, baseURL string, store storage.Store) *Service {
	return &Service{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		now:     time.Now,
	}
}

// MemberLink pairs a member with their issued short link.
type MemberLink struct {
	MemberID  string `json:"memberId"`
	UserID    string `json:"userId,omitempty"`
	Phone     string `json:"phoneE164,omitempty"`
	ShortLink string `json:"shortLink"`
}

// IssueResult carries the owner link and one link per member.
type IssueResult struct {
	OwnerToken  string
	OwnerLink   string
	MemberLinks []MemberLink
}

// Resolution is the decoded identity of a resolved token.
type Resolution struct {
	Type     models.TokenType
	BillID   string
	MemberID string
	UserID   string
}

func (s *Service) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (s *Service) encode(typ models.TokenType, billID, memberID string, exp int64) string {
	payload := fmt.Sprintf("%s.%s.%s.%d", typ, billID, memberID, exp)
	sig := s.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) +
		"." + base64.RawURLEncoding.EncodeToString(sig)
}

// ShortLink builds the public URL for a token string.
func (s *Service) ShortLink(tok string) string {
	return s.baseURL + "/s/" + tok
}

// Issue generates one owner token and one token per member of the bill,
// persisting all records with a single unordered bulk insert so one
// duplicate does not prevent the rest from being stored.
func (s *Service) Issue(ctx context.Context, bill *models.Bill) (*IssueResult, error) {
	now := s.now()
	exp := now.Add(s.ttl).Unix()

	ownerTok := s.encode(models.TokenOwner, bill.ID, "", exp)
	records := []*models.Token{{
		Token:     ownerTok,
		Type:      models.TokenOwner,
		BillID:    bill.ID,
		UserID:    bill.CreatorUserID,
		ExpiresAt: exp,
		CreatedAt: now.Unix(),
	}}

	links := make([]MemberLink, 0, len(bill.Members))
	for i := range bill.Members {
		m := &bill.Members[i]
		tok := s.encode(models.TokenMember, bill.ID, m.ID, exp)
		records = append(records, &models.Token{
			Token:     tok,
			Type:      models.TokenMember,
			BillID:    bill.ID,
			MemberID:  m.ID,
			UserID:    m.Ref.UserID,
			ExpiresAt: exp,
			CreatedAt: now.Unix(),
		})
		links = append(links, MemberLink{
			MemberID:  m.ID,
			UserID:    m.Ref.UserID,
			Phone:     m.Ref.Phone,
			ShortLink: s.ShortLink(tok),
		})
	}

	if err := s.store.InsertTokens(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}

	return &IssueResult{
		OwnerToken:  ownerTok,
		OwnerLink:   s.ShortLink(ownerTok),
		MemberLinks: links,
	}, nil
}

// Resolve validates a token string and returns its identity. The signature
// is verified (constant time) before any decoded field is trusted; only
// then is the persisted record consulted for existence, expiry match and
// expiry.
func (s *Service) Resolve(ctx context.Context, tok string) (*Resolution, error) {
	payloadPart, sigPart, found := strings.Cut(tok, ".")
	if !found {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payload encoding", ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature encoding", ErrInvalidToken)
	}

	payload := string(payloadBytes)
	if !hmac.Equal(s.sign(payload), sig) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	fields := strings.SplitN(payload, ".", 4)
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}
	exp, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed expiry", ErrInvalidToken)
	}

	rec, err := s.store.GetToken(ctx, tok)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	// A mismatch between the stored expiry and the one embedded in the
	// payload means a structurally valid token was substituted onto
	// another record.
	if rec.ExpiresAt != exp {
		return nil, fmt.Errorf("%w: expiry mismatch", ErrInvalidToken)
	}
	if s.now().Unix() > exp {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	return &Resolution{
		Type:     rec.Type,
		BillID:   rec.BillID,
		MemberID: rec.MemberID,
		UserID:   rec.UserID,
	}, nil
}
