package ops

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/hpungsan/quill/internal/errors"
)

func TestRender(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	mustCreate(t, r, "p1.txt", "Plan a {{duration}} minute {{focus}} lesson.")

	out, err := r.Render(ctx, RenderInput{ID: "p1.txt", Vars: map[string]string{"duration": "45", "focus": "reading"}})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Content != "Plan a 45 minute reading lesson." {
		t.Errorf("Content = %q", out.Content)
	}
	if !slices.Equal(out.Placeholders, []string{"duration", "focus"}) {
		t.Errorf("Placeholders = %v, want [duration focus]", out.Placeholders)
	}

	_, err = r.Render(ctx, RenderInput{ID: "p1.txt", Vars: map[string]string{"duration": "45"}, Strict: true})
	wantCode(t, err, errors.ErrInvalidRequest)

	// Stored content is untouched.
	if got := mustContent(t, r, "p1.txt"); !strings.Contains(got, "{{duration}}") {
		t.Errorf("stored content = %q, want placeholders intact", got)
	}
}
