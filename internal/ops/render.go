package ops

import (
	"context"

	"github.com/hpungsan/quill/internal/prompt"
)

// RenderInput contains parameters for the Render operation.
type RenderInput struct {
	ID     string
	Vars   map[string]string
	Strict bool // fail when a placeholder has no value
}

// RenderOutput contains the result of the Render operation.
type RenderOutput struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Placeholders []string `json:"placeholders"`
}

// Render substitutes {{name}} placeholders in the prompt's current content.
// The stored prompt is not modified.
func (r *Repository) Render(ctx context.Context, input RenderInput) (*RenderOutput, error) {
	cur, err := r.ReadContent(ctx, ReadContentInput{ID: input.ID})
	if err != nil {
		return nil, err
	}
	rendered, err := prompt.Render(cur.Content, input.Vars, input.Strict)
	if err != nil {
		return nil, err
	}
	names := prompt.Placeholders(cur.Content)
	if names == nil {
		names = []string{}
	}
	return &RenderOutput{ID: input.ID, Content: rendered, Placeholders: names}, nil
}
