// Package ledger persists run history and created tokens in a local sqlite
// database. The ledger is what makes the two-phase create/resolve pattern
// durable: tokens recorded with an empty key survive a crash and can be
// resolved later via search alone.
package ledger

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Ledger handles run and token persistence
type Ledger struct {
	db *sql.DB
}

// Run is one recorded invocation
type Run struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Accounts   int
	Succeeded  int
	Failed     int
}

// Entry is one created token as recorded in the ledger
type Entry struct {
	ID     int64
	RunID  string
	UserID string
	Name   string
	Key    string
}

// Open opens (creating if needed) the ledger database
func Open(dbPath string) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}

	return l, nil
}

// migrate creates necessary tables
func (l *Ledger) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		accounts INTEGER DEFAULT 0,
		succeeded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		token_id INTEGER NOT NULL,
		name TEXT,
		deleted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_run ON tokens(run_id);
	CREATE INDEX IF NOT EXISTS idx_tokens_user ON tokens(user_id);
	CREATE INDEX IF NOT EXISTS idx_deletions_run ON deletions(run_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// BeginRun records the start of an invocation and returns its run ID
func (l *Ledger) BeginRun(mode string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(`
		INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)
	`, id, mode, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun records the final tallies of an invocation
func (l *Ledger) FinishRun(runID string, accounts, succeeded, failed int) error {
	_, err := l.db.Exec(`
		UPDATE runs SET finished_at = ?, accounts = ?, succeeded = ?, failed = ? WHERE id = ?
	`, time.Now(), accounts, succeeded, failed, runID)
	return err
}

// RecordToken inserts a created token. Key may be empty; ResolveKey fills
// it in later.
func (l *Ledger) RecordToken(runID, userID, name, key string) error {
	_, err := l.db.Exec(`
		INSERT INTO tokens (run_id, user_id, name, key) VALUES (?, ?, ?, ?)
	`, runID, userID, name, key)
	return err
}

// ResolveKey sets the key for every unresolved row with the given name and
// user, returning the number of rows updated.
func (l *Ledger) ResolveKey(userID, name, key string) (int64, error) {
	res, err := l.db.Exec(`
		UPDATE tokens SET key = ? WHERE user_id = ? AND name = ? AND key = ''
	`, key, userID, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Unresolved returns entries whose key is still empty, optionally filtered
// by user
func (l *Ledger) Unresolved(userID string) ([]Entry, error) {
	query := `SELECT id, run_id, user_id, name, key FROM tokens WHERE key = ''`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id`

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RunID, &e.UserID, &e.Name, &e.Key); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordDeletion inserts one successful deletion
func (l *Ledger) RecordDeletion(runID, userID string, tokenID int64, name string) error {
	_, err := l.db.Exec(`
		INSERT INTO deletions (run_id, user_id, token_id, name) VALUES (?, ?, ?, ?)
	`, runID, userID, tokenID, name)
	return err
}

// Close closes the database connection
func (l *Ledger) Close() error {
	return l.db.Close()
}
