package session

import (
	"context"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/ops"
)

func TestRepositoryBackend_EditAndSave(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.MinIndexEntries = 1
	repo, err := ops.Open(t.TempDir(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("ops.Open() error = %v", err)
	}
	defer repo.Close()

	if _, err := repo.Create(ctx, ops.CreateInput{ID: "lesson.txt", Content: "v1", Tags: []string{"30"}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	s := New(RepositoryBackend{Repo: repo},
		WithAutosaveDelay(time.Hour),
		WithTaxonomy(repo.Taxonomy()),
		WithLogger(zaptest.NewLogger(t)))
	mustNoErr(t, s.Open(ctx, "lesson.txt"))
	if s.Buffer() != "v1" {
		t.Fatalf("Buffer() = %q, want v1", s.Buffer())
	}

	mustNoErr(t, s.Edit("v2"))
	mustNoErr(t, s.Flush(ctx))
	mustNoErr(t, s.SelectTag(ctx, "Duration (Minutes)", "90"))

	content, err := repo.ReadContent(ctx, ops.ReadContentInput{ID: "lesson.txt"})
	mustNoErr(t, err)
	if content.Content != "v2" {
		t.Errorf("content = %q, want v2", content.Content)
	}

	meta, err := repo.ReadMetadata(ctx, ops.ReadMetadataInput{ID: "lesson.txt"})
	mustNoErr(t, err)
	if !slices.Equal(meta.Record.Tags, []string{"90"}) {
		t.Errorf("Tags = %v, want [90]", meta.Record.Tags)
	}
	if len(meta.Record.History) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(meta.Record.History))
	}

	snap, err := repo.Snapshot(ctx, ops.SnapshotInput{SnapshotID: meta.Record.History[0].SnapshotID})
	mustNoErr(t, err)
	if snap.Content != "v1" {
		t.Errorf("snapshot = %q, want v1", snap.Content)
	}
}
