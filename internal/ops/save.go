package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// SaveInput contains parameters for the Save operation. Nil optional
// fields leave the stored value unchanged on update.
type SaveInput struct {
	ID        string
	Content   string
	Label     *string
	Component *string
	Tags      []string // nil means unchanged
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	ID       string             `json:"id"`
	Created  bool               `json:"created"`
	Snapshot *prompt.VersionRef `json:"snapshot,omitempty"`
	Record   prompt.Record      `json:"record"`
}

// Save creates the prompt if the identifier is new and otherwise performs
// a versioned content update, applying any provided metadata in the same
// index write.
func (r *Repository) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(input.ID)
	defer unlock()

	_, err := r.index.Get(input.ID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if err == nil {
		out, err := r.updateContentLocked(input.ID, input.Content, func(rec *prompt.Record) {
			if input.Label != nil {
				rec.Label = *input.Label
			}
			if input.Component != nil {
				rec.Component = *input.Component
			}
			if input.Tags != nil {
				rec.Tags = prompt.NormalizeTags(input.Tags)
			}
		})
		if err != nil {
			return nil, err
		}
		snap := out.Snapshot
		return &SaveOutput{ID: input.ID, Snapshot: &snap, Record: out.Record}, nil
	}

	in := CreateInput{ID: input.ID, Content: input.Content, Tags: input.Tags}
	if input.Label != nil {
		in.Label = *input.Label
	}
	if input.Component != nil {
		in.Component = *input.Component
	}
	out, err := r.createLocked(in)
	if err != nil {
		return nil, err
	}
	return &SaveOutput{ID: input.ID, Created: true, Record: out.Record}, nil
}
