package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/prompt"
)

// SnapshotInput contains parameters for the Snapshot operation.
type SnapshotInput struct {
	SnapshotID string
}

// SnapshotOutput contains the result of the Snapshot operation.
type SnapshotOutput struct {
	SnapshotID string `json:"snapshot_id"`
	Content    string `json:"content"`
}

// Snapshot returns archived content. Snapshots of deleted prompts are still
// retrievable.
func (r *Repository) Snapshot(ctx context.Context, input SnapshotInput) (*SnapshotOutput, error) {
	if err := prompt.ValidateSnapshotID(input.SnapshotID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	content, err := r.archive.Retrieve(input.SnapshotID)
	if err != nil {
		return nil, err
	}
	return &SnapshotOutput{SnapshotID: input.SnapshotID, Content: content}, nil
}
