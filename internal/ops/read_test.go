package ops

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/quill/internal/errors"
)

func TestReadContent_NotIndexed(t *testing.T) {
	r, dir := openRepo(t, 1)
	// A blob without an index entry does not exist as far as readers are concerned.
	if err := os.WriteFile(filepath.Join(dir, PromptsDir, "ghost.txt"), []byte("boo"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := r.ReadContent(context.Background(), ReadContentInput{ID: "ghost.txt"})
	wantCode(t, err, errors.ErrNotFound)
}

func TestReadContent_IndexedButBlobMissing(t *testing.T) {
	r, dir := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "text")
	if err := os.Remove(filepath.Join(dir, PromptsDir, "p1.txt")); err != nil {
		t.Fatal(err)
	}

	_, err := r.ReadContent(context.Background(), ReadContentInput{ID: "p1.txt"})
	wantCode(t, err, errors.ErrNotFound)
	if qe := errors.As(err); qe.Details["indexed"] != true {
		t.Errorf("Details[indexed] = %v, want true", qe.Details["indexed"])
	}
}

func TestReads_AreIdempotent(t *testing.T) {
	r, dir := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "stable")

	indexPath := filepath.Join(dir, PromptsDir, "metadata.json")
	before, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if got := mustContent(t, r, "p1.txt"); got != "stable" {
			t.Errorf("content = %q, want stable", got)
		}
		if m := mustMeta(t, r, "p1.txt"); m.Record.Label != "p1.txt" {
			t.Errorf("Label = %q, want p1.txt", m.Record.Label)
		}
	}

	after, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("reads modified the index file")
	}
}

func TestReadMetadata_NotFound(t *testing.T) {
	r, _ := openRepo(t, 1)
	_, err := r.ReadMetadata(context.Background(), ReadMetadataInput{ID: "nope.txt"})
	wantCode(t, err, errors.ErrNotFound)
}
