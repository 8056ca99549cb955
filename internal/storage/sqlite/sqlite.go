// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface. Bills are kept as JSON documents, which keeps the
// schema aligned with the document-store semantics the service layer
// expects and lets the MongoDB backend share the same model structs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateBill persists a new bill document and its member index rows.
func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if bill.Version == 0 {
		bill.Version = 1
	}
	doc, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to encode bill: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO bills (id, creator_user_id, status, created_at, version, doc) VALUES (?, ?, ?, ?, ?, ?)",
		bill.ID, bill.CreatorUserID, string(bill.Status), bill.CreatedAt, bill.Version, string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	if err := insertMemberRows(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMemberRows(ctx context.Context, tx *sql.Tx, bill *models.Bill) error {
	for i := range bill.Members {
		m := &bill.Members[i]
		_, err := tx.ExecContext(ctx,
			"INSERT INTO bill_members (bill_id, member_id, user_id, status) VALUES (?, ?, ?, ?)",
			bill.ID, m.ID, m.Ref.UserID, string(m.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to insert member row: %w", err)
		}
	}
	return nil
}

// GetBill retrieves a bill by ID.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT doc, version FROM bills WHERE id = ?", billID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return decodeBill(doc, version)
}

func decodeBill(doc string, version int64) (*models.Bill, error) {
	bill := &models.Bill{}
	if err := json.Unmarshal([]byte(doc), bill); err != nil {
		return nil, fmt.Errorf("failed to decode bill: %w", err)
	}
	// Version lives in its own column; the JSON blob's copy is not
	// authoritative.
	bill.Version = version
	return bill, nil
}

// UpdateBill replaces the bill document if the persisted version still
// matches expectedVersion.
func (s *SQLiteStore) UpdateBill(ctx context.Context, bill *models.Bill, expectedVersion int64) error {
	bill.Version = expectedVersion + 1
	doc, err := json.Marshal(bill)
	if err != nil {
		return fmt.Errorf("failed to encode bill: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE bills SET status = ?, version = ?, doc = ? WHERE id = ? AND version = ?",
		string(bill.Status), bill.Version, string(doc), bill.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		bill.Version = expectedVersion
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM bills WHERE id = ?", bill.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check bill existence: %w", err)
		}
		return storage.ErrConflict
	}

	// Refresh the member index to mirror the embedded list.
	if _, err := tx.ExecContext(ctx, "DELETE FROM bill_members WHERE bill_id = ?", bill.ID); err != nil {
		return fmt.Errorf("failed to clear member rows: %w", err)
	}
	if err := insertMemberRows(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListOwned returns bills created by the user, newest first.
func (s *SQLiteStore) ListOwned(ctx context.Context, creatorUserID string, f storage.ListFilter) ([]*models.Bill, error) {
	query := "SELECT doc, version FROM bills WHERE creator_user_id = ?"
	args := []any{creatorUserID}

	if f.Status != "" && f.Status != "ALL" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Cursor > 0 {
		query += " AND created_at < ?"
		args = append(args, f.Cursor)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limitOf(f))

	bills, err := s.queryBills(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		filtered := bills[:0]
		for _, b := range bills {
			if strings.Contains(strings.ToLower(b.Title), q) {
				filtered = append(filtered, b)
			}
		}
		bills = filtered
	}
	return bills, nil
}

// ListAssigned returns bills where the user appears as a member, newest
// first. The status filter applies to the user's own member status.
func (s *SQLiteStore) ListAssigned(ctx context.Context, userID string, f storage.ListFilter) ([]*models.Bill, error) {
	query := `SELECT b.doc, b.version FROM bills b
		JOIN bill_members m ON m.bill_id = b.id
		WHERE m.user_id = ?`
	args := []any{userID}

	if f.Status != "" && f.Status != "ALL" {
		query += " AND m.status = ?"
		args = append(args, f.Status)
	}
	if f.Cursor > 0 {
		query += " AND b.created_at < ?"
		args = append(args, f.Cursor)
	}
	query += " ORDER BY b.created_at DESC, b.id DESC LIMIT ?"
	args = append(args, limitOf(f))

	return s.queryBills(ctx, query, args...)
}

func limitOf(f storage.ListFilter) int {
	if f.Limit <= 0 {
		return 20
	}
	return f.Limit
}

func (s *SQLiteStore) queryBills(ctx context.Context, query string, args ...any) ([]*models.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		var doc string
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bill, err := decodeBill(doc, version)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}

// InsertTokens bulk-inserts token records. Duplicates are skipped so one
// colliding token does not prevent the others from being stored.
func (s *SQLiteStore) InsertTokens(ctx context.Context, tokens []*models.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tok := range tokens {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tokens (token, type, bill_id, member_id, user_id, exp, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tok.Token, string(tok.Type), tok.BillID, tok.MemberID, tok.UserID, tok.ExpiresAt, tok.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert token: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetToken retrieves a token record by its token string.
func (s *SQLiteStore) GetToken(ctx context.Context, token string) (*models.Token, error) {
	tok := &models.Token{}
	var typ string
	err := s.db.QueryRowContext(ctx,
		"SELECT token, type, bill_id, member_id, user_id, exp, created_at FROM tokens WHERE token = ?",
		token,
	).Scan(&tok.Token, &typ, &tok.BillID, &tok.MemberID, &tok.UserID, &tok.ExpiresAt, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	tok.Type = models.TokenType(typ)
	return tok, nil
}

// MarkEventProcessed records a transaction id, reporting whether this call
// was the first sighting.
func (s *SQLiteStore) MarkEventProcessed(ctx context.Context, transactionID, note string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_events (transaction_id, note, at) VALUES (?, ?, ?)",
		transactionID, note, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
