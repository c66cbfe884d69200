package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete removes the index entry and the blob. Snapshots stay in the
// archive and remain retrievable by id.
//
// The index entry goes first: a failure after that leaves an unindexed blob,
// which is invisible and is archived by a later Create of the same id.
func (r *Repository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(input.ID)
	defer unlock()

	if err := r.index.Remove(input.ID); err != nil {
		return nil, err
	}

	if err := r.blobs.Remove(input.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		r.logger.Warn("blob removal failed after index delete", zap.String("id", input.ID), zap.Error(err))
	}

	return &DeleteOutput{Deleted: true, ID: input.ID}, nil
}
