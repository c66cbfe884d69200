package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/quill/internal/errors"
)

func TestRestore(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	mustCreate(t, r, "p1.txt", "good")
	upd, err := r.UpdateContent(ctx, UpdateContentInput{ID: "p1.txt", Content: "bad"})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	out, err := r.Restore(ctx, RestoreInput{ID: "p1.txt", SnapshotID: upd.Snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if out.RestoredFrom != upd.Snapshot.SnapshotID {
		t.Errorf("RestoredFrom = %q, want %q", out.RestoredFrom, upd.Snapshot.SnapshotID)
	}
	if len(out.Record.History) != 2 {
		t.Errorf("len(History) = %d, want 2", len(out.Record.History))
	}
	if got := mustContent(t, r, "p1.txt"); got != "good" {
		t.Errorf("content = %q, want good", got)
	}

	// The replaced content is itself archived.
	snap, err := r.Snapshot(ctx, SnapshotInput{SnapshotID: out.Snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Content != "bad" {
		t.Errorf("snapshot = %q, want bad", snap.Content)
	}
}

func TestRestore_Errors(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	mustCreate(t, r, "p1.txt", "x")
	mustCreate(t, r, "p2.txt", "y")
	upd, err := r.UpdateContent(ctx, UpdateContentInput{ID: "p2.txt", Content: "z"})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	tests := []struct {
		name     string
		snapshot string
		want     errors.ErrorCode
	}{
		{"other prompt's snapshot", upd.Snapshot.SnapshotID, errors.ErrInvalidRequest},
		{"missing snapshot", "p1_v01HZZZZZZZZZZZZZZZZZZZZZZZ.txt", errors.ErrNotFound},
		{"path traversal", "../p1_v1.txt", errors.ErrInvalidIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Restore(ctx, RestoreInput{ID: "p1.txt", SnapshotID: tt.snapshot})
			wantCode(t, err, tt.want)
		})
	}
}

func TestRestore_RejectsSnapshotOfPrefixedPrompt(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	mustCreate(t, r, "a.txt", "mine")
	mustCreate(t, r, "a_vX.txt", "theirs")
	upd, err := r.UpdateContent(ctx, UpdateContentInput{ID: "a_vX.txt", Content: "theirs v2"})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	_, err = r.Restore(ctx, RestoreInput{ID: "a.txt", SnapshotID: upd.Snapshot.SnapshotID})
	wantCode(t, err, errors.ErrInvalidRequest)
	if got := mustContent(t, r, "a.txt"); got != "mine" {
		t.Errorf("content = %q, want mine", got)
	}
}
