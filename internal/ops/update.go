package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// UpdateContentInput contains parameters for the UpdateContent operation.
type UpdateContentInput struct {
	ID      string
	Content string
}

// UpdateContentOutput contains the result of the UpdateContent operation.
type UpdateContentOutput struct {
	ID       string            `json:"id"`
	Snapshot prompt.VersionRef `json:"snapshot"`
	Record   prompt.Record     `json:"record"`
}

// UpdateContent replaces a prompt's text. The content being replaced is
// archived first and a reference to it is prepended to the history.
//
// The update is journaled before the blob is written. If the index refuses
// the new history (data-loss guard) the blob is restored from the snapshot
// and the journal entry aborted, so content and index never disagree.
// Entries an earlier update left pending are settled first; while one
// cannot be settled the update fails with IO_FAILURE.
func (r *Repository) UpdateContent(ctx context.Context, input UpdateContentInput) (*UpdateContentOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(input.ID)
	defer unlock()

	return r.updateContentLocked(input.ID, input.Content, nil)
}

// updateContentLocked runs the versioned update. mutate, if set, is applied
// to the record in the same index write. Caller must hold the id lock.
func (r *Repository) updateContentLocked(id, content string, mutate func(*prompt.Record)) (*UpdateContentOutput, error) {
	if _, err := r.index.Get(id); err != nil {
		return nil, err
	}
	if err := r.resolvePendingLocked(id); err != nil {
		return nil, err
	}

	previous, err := r.blobs.Read(id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewContentMissing(id)
		}
		return nil, err
	}

	ref, err := r.archive.Archive(id, previous)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("archived snapshot", zap.String("id", id), zap.String("snapshot", ref.SnapshotID))

	entryID, err := r.journal.Begin(id, ref, content)
	if err != nil {
		return nil, err
	}

	if _, err := r.blobs.Write(id, content); err != nil {
		r.abort(entryID, id)
		return nil, err
	}

	rec, err := r.index.Update(id, func(rec *prompt.Record, exists bool) error {
		if !exists {
			return errors.NewNotFound(id)
		}
		rec.History = append([]prompt.VersionRef{ref}, rec.History...)
		if mutate != nil {
			mutate(rec)
		}
		return nil
	})
	if err != nil {
		if _, werr := r.blobs.Write(id, previous); werr != nil {
			// The journal entry stays pending; Recover finishes it on next open.
			r.logger.Error("rollback failed; leaving journal entry pending",
				zap.String("id", id), zap.String("snapshot", ref.SnapshotID), zap.Error(werr))
			return nil, err
		}
		r.abort(entryID, id)
		r.logger.Warn("update rolled back",
			zap.String("id", id), zap.String("snapshot", ref.SnapshotID), zap.Error(err))
		return nil, err
	}

	if err := r.journal.Complete(entryID); err != nil {
		r.logger.Warn("journal complete failed", zap.Int64("entry", entryID), zap.Error(err))
	}

	return &UpdateContentOutput{ID: id, Snapshot: ref, Record: rec}, nil
}

func (r *Repository) abort(entryID int64, id string) {
	if err := r.journal.Abort(entryID); err != nil {
		r.logger.Warn("journal abort failed", zap.Int64("entry", entryID), zap.String("id", id), zap.Error(err))
	}
}
