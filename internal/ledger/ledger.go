// Package ledger records the indexing outcome of every document in
// PostgreSQL, so partially indexed documents can be found and re-ingested.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/pubmed-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS indexed_documents (
	doc_id         TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	failed_indices TEXT[] NOT NULL DEFAULT '{}',
	indexed_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS indexed_documents_status_idx ON indexed_documents (status);`

const upsertStatus = `
INSERT INTO indexed_documents (doc_id, status, failed_indices, indexed_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (doc_id) DO UPDATE
SET status = EXCLUDED.status,
    failed_indices = EXCLUDED.failed_indices,
    indexed_at = EXCLUDED.indexed_at`

// DB is satisfied by *sql.DB and *sql.Tx.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ledger implements the build pipeline's status recorder.
type Ledger struct {
	db     DB
	logger *slog.Logger
}

func New(db DB) *Ledger {
	return &Ledger{db: db, logger: slog.Default().With("component", "ledger")}
}

// Open connects with c and creates the table if needed.
func Open(ctx context.Context, c *postgres.Client) (*Ledger, error) {
	l := New(c.DB)
	if err := l.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating ledger schema: %w", err)
	}
	return nil
}

// RecordStatus upserts the latest outcome for docID. Re-indexing a document
// overwrites its previous row.
func (l *Ledger) RecordStatus(ctx context.Context, docID string, status string, failedIndices []string) error {
	if failedIndices == nil {
		failedIndices = []string{}
	}
	if _, err := l.db.ExecContext(ctx, upsertStatus, docID, status, pq.Array(failedIndices)); err != nil {
		return fmt.Errorf("recording status %s for %s: %w", status, docID, err)
	}
	l.logger.Debug("status recorded", "doc_id", docID, "status", status, "failed_indices", failedIndices)
	return nil
}

// Summary counts documents per status.
func (l *Ledger) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM indexed_documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying ledger summary: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning ledger summary: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Entry is one incomplete document.
type Entry struct {
	DocID         string
	Status        string
	FailedIndices []string
}

// Incomplete lists documents whose last indexing left at least one index
// unwritten, most recent first.
func (l *Ledger) Incomplete(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT doc_id, status, failed_indices
FROM indexed_documents
WHERE cardinality(failed_indices) > 0
ORDER BY indexed_at DESC, doc_id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying incomplete documents: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DocID, &e.Status, pq.Array(&e.FailedIndices)); err != nil {
			return nil, fmt.Errorf("scanning incomplete document: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
