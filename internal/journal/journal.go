package journal

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// State of a journal entry.
type State string

const (
	StatePending  State = "pending"
	StateComplete State = "complete"
	StateAborted  State = "aborted"
)

// Entry is one recorded content update.
type Entry struct {
	ID          int64
	PromptID    string
	SnapshotID  string
	ContentHash string // hash of the content the update writes; empty on v1 rows
	CreatedAt   time.Time
	State       State
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Wrote reports whether content is what the entry's update wrote.
func (e Entry) Wrote(content string) bool {
	return e.ContentHash != "" && e.ContentHash == HashContent(content)
}

// Ref returns the history reference the update would add to the index.
func (e Entry) Ref() prompt.VersionRef {
	return prompt.VersionRef{SnapshotID: e.SnapshotID, CreatedAt: e.CreatedAt}
}

// Journal wraps the pending_updates table.
type Journal struct {
	db *sql.DB
}

// New wraps an initialized journal database.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records that the blob for promptID is about to be overwritten with
// content and that ref holds the content being replaced.
func (j *Journal) Begin(promptID string, ref prompt.VersionRef, content string) (int64, error) {
	res, err := j.db.Exec(
		`INSERT INTO pending_updates (prompt_id, snapshot_id, content_hash, created_at, state) VALUES (?, ?, ?, ?, ?)`,
		promptID, ref.SnapshotID, HashContent(content), ref.CreatedAt.UnixNano(), string(StatePending),
	)
	if err != nil {
		return 0, errors.NewIOFailure("journal begin", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.NewIOFailure("journal begin", err)
	}
	return id, nil
}

// Complete marks an entry as applied.
func (j *Journal) Complete(id int64) error {
	return j.resolve(id, StateComplete)
}

// Abort marks an entry as rolled back.
func (j *Journal) Abort(id int64) error {
	return j.resolve(id, StateAborted)
}

func (j *Journal) resolve(id int64, state State) error {
	res, err := j.db.Exec(
		`UPDATE pending_updates SET state = ?, resolved_at = ? WHERE id = ? AND state = ?`,
		string(state), time.Now().UnixNano(), id, string(StatePending),
	)
	if err != nil {
		return errors.NewIOFailure("journal "+string(state), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewIOFailure("journal "+string(state), err)
	}
	if n == 0 {
		return errors.NewInvalidRequest("journal entry is not pending")
	}
	return nil
}

// Pending returns unresolved entries, oldest first.
func (j *Journal) Pending() ([]Entry, error) {
	return j.query(
		`SELECT id, prompt_id, snapshot_id, content_hash, created_at, state FROM pending_updates WHERE state = ? ORDER BY id`,
		string(StatePending),
	)
}

// PendingFor returns unresolved entries for one prompt, oldest first.
func (j *Journal) PendingFor(promptID string) ([]Entry, error) {
	return j.query(
		`SELECT id, prompt_id, snapshot_id, content_hash, created_at, state FROM pending_updates WHERE prompt_id = ? AND state = ? ORDER BY id`,
		promptID, string(StatePending),
	)
}

func (j *Journal) query(q string, args ...any) ([]Entry, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, errors.NewIOFailure("journal pending", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		var state string
		if err := rows.Scan(&e.ID, &e.PromptID, &e.SnapshotID, &e.ContentHash, &created, &state); err != nil {
			return nil, errors.NewIOFailure("journal pending", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		e.State = State(state)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIOFailure("journal pending", err)
	}
	return out, nil
}

// Prune deletes resolved entries older than cutoff and returns the count.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec(
		`DELETE FROM pending_updates WHERE state != ? AND resolved_at < ?`,
		string(StatePending), cutoff.UnixNano(),
	)
	if err != nil {
		return 0, errors.NewIOFailure("journal prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewIOFailure("journal prune", err)
	}
	return n, nil
}
