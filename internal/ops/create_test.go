package ops

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/prompt"
)

func TestCreate_Defaults(t *testing.T) {
	r, _ := openRepo(t, 4)

	out, err := r.Create(context.Background(), CreateInput{ID: "prompt1.txt", Content: "hello"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if out.Record.Label != "prompt1.txt" {
		t.Errorf("Label = %q, want prompt1.txt", out.Record.Label)
	}
	if out.Record.Component != prompt.DefaultComponent {
		t.Errorf("Component = %q, want %q", out.Record.Component, prompt.DefaultComponent)
	}
	if len(out.Record.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", out.Record.Tags)
	}
	if out.Record.History == nil || len(out.Record.History) != 0 {
		t.Errorf("History = %#v, want empty non-nil", out.Record.History)
	}
	if got := mustContent(t, r, "prompt1.txt"); got != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
}

func TestCreate_WithMetadata(t *testing.T) {
	r, _ := openRepo(t, 1)
	out, err := r.Create(context.Background(), CreateInput{
		ID:        "intro.txt",
		Label:     "Intro",
		Component: "call2",
		Tags:      []string{"Reading", "Reading", " warmup "},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if out.Record.Label != "Intro" || out.Record.Component != "call2" {
		t.Errorf("Record = %+v", out.Record)
	}
	if !slices.Equal(out.Record.Tags, []string{"Reading", "warmup"}) {
		t.Errorf("Tags = %v, want [Reading warmup]", out.Record.Tags)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	r, _ := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "one")

	_, err := r.Create(context.Background(), CreateInput{ID: "p1.txt", Content: "two"})
	wantCode(t, err, errors.ErrAlreadyExists)

	if got := mustContent(t, r, "p1.txt"); got != "one" {
		t.Errorf("content = %q, want one", got)
	}
}

func TestCreate_InvalidIdentifier(t *testing.T) {
	r, dir := openRepo(t, 1)
	for _, id := range []string{"../x.txt", "x.md", "", "a b.txt", ".hidden.txt"} {
		_, err := r.Create(context.Background(), CreateInput{ID: id, Content: "x"})
		if !errors.Is(err, errors.ErrInvalidIdentifier) {
			t.Errorf("Create(%q) error = %v, want INVALID_IDENTIFIER", id, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "x.txt")); !os.IsNotExist(err) {
		t.Errorf("x.txt exists outside the store: %v", err)
	}
}

func TestCreate_ArchivesStrayBlob(t *testing.T) {
	r, dir := openRepo(t, 1)
	stray := filepath.Join(dir, PromptsDir, "p1.txt")
	if err := os.WriteFile(stray, []byte("left behind"), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := r.Create(context.Background(), CreateInput{ID: "p1.txt", Content: "fresh"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(out.Record.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(out.Record.History))
	}

	snap, err := r.Snapshot(context.Background(), SnapshotInput{SnapshotID: out.Record.History[0].SnapshotID})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Content != "left behind" {
		t.Errorf("snapshot = %q, want %q", snap.Content, "left behind")
	}
}
