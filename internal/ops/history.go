package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	ID string
}

// HistoryOutput lists a prompt's snapshots. History is the indexed list,
// newest first. Orphans are snapshots on disk that the index does not
// reference, such as those left by a deleted prompt of the same name.
type HistoryOutput struct {
	ID      string              `json:"id"`
	Indexed bool                `json:"indexed"`
	History []prompt.VersionRef `json:"history"`
	Orphans []prompt.VersionRef `json:"orphans"`
}

// History reports indexed and orphaned snapshots for id. It is NOT_FOUND
// only when the id is neither indexed nor has any snapshot on disk.
func (r *Repository) History(ctx context.Context, input HistoryInput) (*HistoryOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	out := &HistoryOutput{ID: input.ID, History: []prompt.VersionRef{}, Orphans: []prompt.VersionRef{}}

	rec, err := r.index.Get(input.ID)
	switch {
	case err == nil:
		out.Indexed = true
		if rec.History != nil {
			out.History = rec.History
		}
	case errors.Is(err, errors.ErrNotFound):
	default:
		return nil, err
	}

	onDisk, err := r.archive.List(input.ID)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(out.History))
	for _, ref := range out.History {
		referenced[ref.SnapshotID] = true
	}
	for _, ref := range onDisk {
		if !referenced[ref.SnapshotID] {
			out.Orphans = append(out.Orphans, ref)
		}
	}

	if !out.Indexed && len(out.Orphans) == 0 {
		return nil, errors.NewNotFound(input.ID)
	}
	return out, nil
}
