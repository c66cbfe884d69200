package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

// ReadContentInput contains parameters for the ReadContent operation.
type ReadContentInput struct {
	ID string
}

// ReadContentOutput contains the result of the ReadContent operation.
type ReadContentOutput struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ReadContent returns the current text of an indexed prompt. An indexed
// prompt whose blob is missing is reported as NOT_FOUND with indexed=true,
// never as empty content.
func (r *Repository) ReadContent(ctx context.Context, input ReadContentInput) (*ReadContentOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if _, err := r.index.Get(input.ID); err != nil {
		return nil, err
	}
	content, err := r.blobs.Read(input.ID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewContentMissing(input.ID)
		}
		return nil, err
	}
	return &ReadContentOutput{ID: input.ID, Content: content}, nil
}

// ReadMetadataInput contains parameters for the ReadMetadata operation.
type ReadMetadataInput struct {
	ID string
}

// ReadMetadataOutput contains the result of the ReadMetadata operation.
type ReadMetadataOutput struct {
	ID     string        `json:"id"`
	Record prompt.Record `json:"record"`
}

// ReadMetadata returns the index record for a prompt.
func (r *Repository) ReadMetadata(ctx context.Context, input ReadMetadataInput) (*ReadMetadataOutput, error) {
	if err := prompt.ValidateID(input.ID); err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	rec, err := r.index.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &ReadMetadataOutput{ID: input.ID, Record: rec}, nil
}
