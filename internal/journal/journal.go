// Package journal keeps a local sqlite mirror of every message committed
// to the knowledge store, searchable via FTS5. It is an audit surface for
// the search/doctor commands; writes are best-effort and never fail an
// ingestion run.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS commits (
    session_id   TEXT NOT NULL,
    msg_id       TEXT NOT NULL DEFAULT '',
    role         TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    text         TEXT NOT NULL,
    chars        INTEGER NOT NULL DEFAULT 0,
    route        TEXT NOT NULL,
    committed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS commits_session ON commits (session_id);

CREATE VIRTUAL TABLE IF NOT EXISTS commits_fts USING fts5(
    text,
    content=commits,
    content_rowid=rowid,
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS commits_ai AFTER INSERT ON commits BEGIN
    INSERT INTO commits_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS commits_ad AFTER DELETE ON commits BEGIN
    INSERT INTO commits_fts(commits_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;
`

// Route labels which downstream write path carried a message.
const (
	RouteBatch    = "batch"
	RouteDocument = "document"
)

// Record is one committed message as remembered locally.
type Record struct {
	SessionID   string
	MsgID       string
	Role        string
	Name        string
	Text        string
	Chars       int
	Route       string
	CommittedAt time.Time
}

type Journal struct {
	db *sql.DB
}

func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordCommits appends the given records in one transaction.
func (j *Journal) RecordCommits(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO commits (session_id, msg_id, role, name, text, chars, route, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(
			r.SessionID, r.MsgID, r.Role, r.Name, r.Text, r.Chars, r.Route,
			r.CommittedAt.UTC().Format("2006-01-02T15:04:05Z"),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SessionMessages returns every committed message for one session in
// commit order.
func (j *Journal) SessionMessages(sessionID string) ([]Record, error) {
	rows, err := j.db.Query(
		`SELECT session_id, msg_id, role, name, text, chars, route, committed_at
		 FROM commits WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("session messages: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var committed string
		if err := rows.Scan(&r.SessionID, &r.MsgID, &r.Role, &r.Name,
			&r.Text, &r.Chars, &r.Route, &committed); err != nil {
			return nil, err
		}
		r.CommittedAt, _ = time.Parse("2006-01-02T15:04:05Z", committed)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (j *Journal) SessionCount() (int, error) {
	var n int
	err := j.db.QueryRow("SELECT COUNT(DISTINCT session_id) FROM commits").Scan(&n)
	return n, err
}

func (j *Journal) MessageCount() (int, error) {
	var n int
	err := j.db.QueryRow("SELECT COUNT(*) FROM commits").Scan(&n)
	return n, err
}

// FTSCount reports how many rows the FTS table holds, for doctor's
// sync check.
func (j *Journal) FTSCount() (int, error) {
	var n int
	err := j.db.QueryRow("SELECT COUNT(*) FROM commits_fts").Scan(&n)
	return n, err
}
