package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// UpdateTagsInput contains parameters for the UpdateTags operation.
type UpdateTagsInput struct {
	ID   string
	Tags []string
}

// UpdateTagsOutput contains the result of the UpdateTags operation.
type UpdateTagsOutput struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

// UpdateTags replaces the tag set wholesale. Group exclusivity is the
// caller's concern; any tag set is stored as given after normalization.
func (r *Repository) UpdateTags(ctx context.Context, input UpdateTagsInput) (*UpdateTagsOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	tags := prompt.NormalizeTags(input.Tags)
	rec, err := r.index.Update(input.ID, func(rec *prompt.Record, exists bool) error {
		if !exists {
			return errors.NewNotFound(input.ID)
		}
		rec.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &UpdateTagsOutput{ID: input.ID, Tags: rec.Tags}, nil
}
