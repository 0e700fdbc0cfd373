package sqlite

import "database/sql"

// schema runs on open; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    username TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    payer TEXT NOT NULL REFERENCES users(username),
    recipient TEXT NOT NULL REFERENCES users(username),
    amount TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    deleted_at INTEGER,
    CHECK (payer <> recipient)
);

CREATE INDEX IF NOT EXISTS idx_transactions_payer ON transactions(payer);
CREATE INDEX IF NOT EXISTS idx_transactions_recipient ON transactions(recipient);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at, seq);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
