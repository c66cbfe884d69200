package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	ID        string
	Label     string   // default: the identifier
	Component string   // default: prompt.DefaultComponent
	Tags      []string // optional
	Content   string
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID     string        `json:"id"`
	Record prompt.Record `json:"record"`
}

// Create adds a new prompt with an empty history.
//
// A blob left on disk without an index entry (for example after a failed
// delete) is archived before being replaced and its snapshot becomes the
// first history entry, so create never discards content.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(input.ID)
	defer unlock()

	return r.createLocked(input)
}

// createLocked performs Create. Caller must hold the id lock.
func (r *Repository) createLocked(input CreateInput) (*CreateOutput, error) {
	if _, err := r.index.Get(input.ID); err == nil {
		return nil, errors.NewAlreadyExists(input.ID)
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	var history []prompt.VersionRef
	stray, err := r.blobs.Read(input.ID)
	switch {
	case err == nil:
		ref, err := r.archive.Archive(input.ID, stray)
		if err != nil {
			return nil, err
		}
		r.logger.Info("archived unindexed blob before create",
			zap.String("id", input.ID), zap.String("snapshot", ref.SnapshotID))
		history = []prompt.VersionRef{ref}
	case errors.Is(err, errors.ErrNotFound):
	default:
		return nil, err
	}

	created, err := r.blobs.Write(input.ID, input.Content)
	if err != nil {
		return nil, err
	}

	rec := prompt.Record{
		Label:     input.Label,
		Component: input.Component,
		Tags:      prompt.NormalizeTags(input.Tags),
		History:   history,
	}
	if rec.Label == "" {
		rec.Label = input.ID
	}
	if rec.Component == "" {
		rec.Component = prompt.DefaultComponent
	}
	if rec.History == nil {
		rec.History = []prompt.VersionRef{}
	}

	stored, err := r.index.Update(input.ID, func(cur *prompt.Record, exists bool) error {
		if exists {
			return errors.NewAlreadyExists(input.ID)
		}
		*cur = rec
		return nil
	})
	if err != nil {
		if created {
			_ = r.blobs.Remove(input.ID)
		} else if len(history) > 0 {
			_, _ = r.blobs.Write(input.ID, stray)
		}
		return nil, err
	}

	r.logger.Debug("prompt created", zap.String("id", input.ID))
	return &CreateOutput{ID: input.ID, Record: stored}, nil
}
