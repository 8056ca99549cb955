package sqlite

import "database/sql"

// Bills are stored as JSON documents with a version column for optimistic
// concurrency; bill_members mirrors the embedded member list so the
// assigned-history view can be answered with a join instead of scanning
// every document.
const schema = `
CREATE TABLE IF NOT EXISTS bills (
    id TEXT PRIMARY KEY,
    creator_user_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    version INTEGER NOT NULL,
    doc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bill_members (
    bill_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    user_id TEXT,
    status TEXT NOT NULL,
    PRIMARY KEY (bill_id, member_id),
    FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tokens (
    token TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    bill_id TEXT NOT NULL,
    member_id TEXT,
    user_id TEXT,
    exp INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_events (
    transaction_id TEXT PRIMARY KEY,
    note TEXT,
    at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_creator ON bills(creator_user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bill_members_user ON bill_members(user_id);
CREATE INDEX IF NOT EXISTS idx_tokens_bill ON tokens(bill_id);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
