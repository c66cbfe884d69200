package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/archive"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	ID         string
	SnapshotID string
}

// RestoreOutput contains the result of the Restore operation.
type RestoreOutput struct {
	UpdateContentOutput
	RestoredFrom string `json:"restored_from"`
}

// Restore makes a snapshot's content current again. It is an ordinary
// versioned update, so the content being replaced is archived first.
func (r *Repository) Restore(ctx context.Context, input RestoreInput) (*RestoreOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := prompt.ValidateSnapshotID(input.SnapshotID); err != nil {
		return nil, err
	}
	if !archive.BelongsTo(input.SnapshotID, input.ID) {
		return nil, errors.NewInvalidRequest("snapshot " + input.SnapshotID + " does not belong to " + input.ID)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	content, err := r.archive.Retrieve(input.SnapshotID)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(input.ID)
	defer unlock()

	out, err := r.updateContentLocked(input.ID, content, nil)
	if err != nil {
		return nil, err
	}
	return &RestoreOutput{UpdateContentOutput: *out, RestoredFrom: input.SnapshotID}, nil
}
