package ops

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/journal"
	"github.com/hpungsan/quill/internal/prompt"
)

// journalRetention is how long resolved journal entries are kept.
const journalRetention = 30 * 24 * time.Hour

// RecoverOutput counts how pending journal entries were resolved.
type RecoverOutput struct {
	Pending       int   `json:"pending"`
	Completed     int   `json:"completed"`      // index already referenced the snapshot
	RolledForward int   `json:"rolled_forward"` // index updated to reference the snapshot
	RolledBack    int   `json:"rolled_back"`    // blob restored from the snapshot
	Discarded     int   `json:"discarded"`      // blob was never overwritten
	Superseded    int   `json:"superseded"`     // a later update owns the blob; snapshot kept as orphan
	Skipped       int   `json:"skipped"`        // left pending, see logs
	Pruned        int64 `json:"pruned"`         // resolved entries past retention
}

// Recover resolves updates interrupted between journal begin and complete.
// Open runs it before serving.
//
// An entry is completed when the index already references its snapshot and
// aborted when a later entry or a newer history reference shows that another
// update replaced the blob since. Otherwise, if the blob still equals the
// snapshot the write never happened and the entry is discarded. If the blob
// holds exactly what the entry wrote, the reference is prepended to the
// history, or when the index refuses, the blob is restored from the
// snapshot. A blob the entry did not write is never rolled back. Resolved
// entries older than journalRetention are then deleted.
func (r *Repository) Recover(ctx context.Context) (*RecoverOutput, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	pending, err := r.journal.Pending()
	if err != nil {
		return nil, err
	}

	last := make(map[string]int64, len(pending))
	for _, e := range pending {
		last[e.PromptID] = e.ID
	}

	out := &RecoverOutput{Pending: len(pending)}
	for _, e := range pending {
		unlock := r.locks.Lock(e.PromptID)
		r.recoverEntryLocked(e, e.ID != last[e.PromptID], out)
		unlock()
	}

	pruned, err := r.journal.Prune(time.Now().Add(-journalRetention))
	if err != nil {
		r.logger.Warn("journal prune failed", zap.Error(err))
	} else {
		out.Pruned = pruned
	}
	if out.Pending > 0 {
		r.logger.Info("journal recovery finished",
			zap.Int("pending", out.Pending),
			zap.Int("completed", out.Completed),
			zap.Int("rolled_forward", out.RolledForward),
			zap.Int("rolled_back", out.RolledBack),
			zap.Int("discarded", out.Discarded),
			zap.Int("superseded", out.Superseded),
			zap.Int("skipped", out.Skipped),
		)
	}
	return out, nil
}

// resolvePendingLocked settles journal entries left for id by an earlier
// failed update. Caller must hold the id lock. It fails with IO_FAILURE when
// an entry cannot be settled, so no new update is layered on top of it.
func (r *Repository) resolvePendingLocked(id string) error {
	pending, err := r.journal.PendingFor(id)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var out RecoverOutput
	for i, e := range pending {
		r.recoverEntryLocked(e, i < len(pending)-1, &out)
	}
	if out.Skipped > 0 {
		return errors.NewIOFailure("resolve pending update",
			fmt.Errorf("%d pending journal entries for %s could not be settled", out.Skipped, id))
	}
	return nil
}

// recoverEntryLocked resolves one entry. superseded is set when a later
// pending entry exists for the same prompt. Caller must hold the id lock.
func (r *Repository) recoverEntryLocked(e journal.Entry, superseded bool, out *RecoverOutput) {
	log := r.logger.With(zap.Int64("entry", e.ID), zap.String("id", e.PromptID), zap.String("snapshot", e.SnapshotID))

	rec, err := r.index.Get(e.PromptID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			r.settle(e.ID, r.journal.Abort, log, &out.Discarded, &out.Skipped)
			return
		}
		log.Warn("recovery skipped", zap.Error(err))
		out.Skipped++
		return
	}

	for _, ref := range rec.History {
		if ref.SnapshotID == e.SnapshotID {
			r.settle(e.ID, r.journal.Complete, log, &out.Completed, &out.Skipped)
			return
		}
	}

	if superseded || (len(rec.History) > 0 && rec.History[0].CreatedAt.After(e.CreatedAt)) {
		log.Info("journal entry superseded by a later update")
		r.settle(e.ID, r.journal.Abort, log, &out.Superseded, &out.Skipped)
		return
	}

	snapshot, err := r.archive.Retrieve(e.SnapshotID)
	if err != nil {
		log.Warn("recovery skipped; snapshot unreadable", zap.Error(err))
		out.Skipped++
		return
	}

	current, err := r.blobs.Read(e.PromptID)
	switch {
	case err == nil && current == snapshot:
		r.settle(e.ID, r.journal.Abort, log, &out.Discarded, &out.Skipped)
		return
	case err == nil:
	case errors.Is(err, errors.ErrNotFound):
		r.rollBack(e, snapshot, log, out)
		return
	default:
		log.Warn("recovery skipped; blob unreadable", zap.Error(err))
		out.Skipped++
		return
	}

	ref := e.Ref()
	_, err = r.index.Update(e.PromptID, func(rec *prompt.Record, exists bool) error {
		if !exists {
			return errors.NewNotFound(e.PromptID)
		}
		rec.History = append([]prompt.VersionRef{ref}, rec.History...)
		return nil
	})
	if err == nil {
		r.settle(e.ID, r.journal.Complete, log, &out.RolledForward, &out.Skipped)
		return
	}
	if !e.Wrote(current) {
		// The blob holds content this entry did not write; keep it.
		log.Warn("roll forward refused and blob not written by entry; keeping blob", zap.Error(err))
		r.settle(e.ID, r.journal.Abort, log, &out.Superseded, &out.Skipped)
		return
	}
	log.Info("roll forward refused; rolling back", zap.Error(err))
	r.rollBack(e, snapshot, log, out)
}

func (r *Repository) rollBack(e journal.Entry, snapshot string, log *zap.Logger, out *RecoverOutput) {
	if _, err := r.blobs.Write(e.PromptID, snapshot); err != nil {
		log.Warn("rollback failed; entry left pending", zap.Error(err))
		out.Skipped++
		return
	}
	r.settle(e.ID, r.journal.Abort, log, &out.RolledBack, &out.Skipped)
}

// settle resolves the entry with fn and bumps ok, or skipped when the journal
// write fails and the entry stays pending.
func (r *Repository) settle(entryID int64, fn func(int64) error, log *zap.Logger, ok, skipped *int) {
	if err := fn(entryID); err != nil {
		log.Warn("journal resolve failed; entry left pending", zap.Error(err))
		*skipped++
		return
	}
	*ok++
}
