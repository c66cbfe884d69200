package ops

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/prompt"
)

// interruptedUpdate simulates a crash after the blob write and before the
// index update: snapshot archived, journal entry pending, blob overwritten.
func interruptedUpdate(t *testing.T, r *Repository, id, newContent string) prompt.VersionRef {
	t.Helper()
	prev, err := r.blobs.Read(id)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := r.archive.Archive(id, prev)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.journal.Begin(id, ref, newContent); err != nil {
		t.Fatal(err)
	}
	if _, err := r.blobs.Write(id, newContent); err != nil {
		t.Fatal(err)
	}
	return ref
}

func reopen(t *testing.T, r *Repository, dir string, floor int) *Repository {
	t.Helper()
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.MinIndexEntries = floor
	r2, err := Open(dir, cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { r2.Close() })
	return r2
}

func mustRecover(t *testing.T, r *Repository) *RecoverOutput {
	t.Helper()
	out, err := r.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	return out
}

func assertNothingPending(t *testing.T, r *Repository) {
	t.Helper()
	pending, err := r.journal.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %+v, want none", pending)
	}
}

func TestRecover_RollsForward(t *testing.T) {
	r, dir := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "old")
	ref := interruptedUpdate(t, r, "p1.txt", "new")

	r2 := reopen(t, r, dir, 1)

	history := mustMeta(t, r2, "p1.txt").Record.History
	if len(history) != 1 || history[0].SnapshotID != ref.SnapshotID {
		t.Errorf("History = %+v, want [%s]", history, ref.SnapshotID)
	}
	if got := mustContent(t, r2, "p1.txt"); got != "new" {
		t.Errorf("content = %q, want new", got)
	}
	assertNothingPending(t, r2)
}

func TestRecover_RollsBackWhenGuardRefuses(t *testing.T) {
	r, dir := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "old")
	interruptedUpdate(t, r, "p1.txt", "new")

	// Reopen with a floor the single-entry index cannot meet.
	r2 := reopen(t, r, dir, 4)

	if got := mustContent(t, r2, "p1.txt"); got != "old" {
		t.Errorf("content = %q, want old", got)
	}
	if history := mustMeta(t, r2, "p1.txt").Record.History; len(history) != 0 {
		t.Errorf("History = %+v, want empty", history)
	}
	assertNothingPending(t, r2)
}

func TestRecover_CompletesAlreadyIndexed(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	mustCreate(t, r, "p1.txt", "old")
	upd, err := r.UpdateContent(ctx, UpdateContentInput{ID: "p1.txt", Content: "new"})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	// Re-open the entry as if the crash hit between index write and complete.
	if _, err := r.journal.Begin("p1.txt", upd.Snapshot, "new"); err != nil {
		t.Fatal(err)
	}

	out := mustRecover(t, r)
	if out.Pending != 1 || out.Completed != 1 {
		t.Errorf("Recover() = %+v, want 1 pending and 1 completed", out)
	}
	if history := mustMeta(t, r, "p1.txt").Record.History; len(history) != 1 {
		t.Errorf("len(History) = %d, want 1", len(history))
	}
}

func TestRecover_DiscardsUnwrittenUpdate(t *testing.T) {
	r, _ := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "same")

	ref, err := r.archive.Archive("p1.txt", "same")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.journal.Begin("p1.txt", ref, "changed"); err != nil {
		t.Fatal(err)
	}

	out := mustRecover(t, r)
	if out.Discarded != 1 {
		t.Errorf("Discarded = %d, want 1", out.Discarded)
	}
	if history := mustMeta(t, r, "p1.txt").Record.History; len(history) != 0 {
		t.Errorf("History = %+v, want empty", history)
	}
}

func TestRecover_KeepsNewerIndexedUpdate(t *testing.T) {
	for _, floor := range []int{1, 4} {
		r, _ := openRepo(t, 1)
		mustCreate(t, r, "p1.txt", "v0")
		interruptedUpdate(t, r, "p1.txt", "v1")

		// A later update succeeded on top of the interrupted one.
		ref1, err := r.archive.Archive("p1.txt", "v1")
		if err != nil {
			t.Fatal(err)
		}
		ref1.CreatedAt = time.Now().Add(time.Second)
		if _, err := r.index.Update("p1.txt", func(rec *prompt.Record, _ bool) error {
			rec.History = append([]prompt.VersionRef{ref1}, rec.History...)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := r.blobs.Write("p1.txt", "latest"); err != nil {
			t.Fatal(err)
		}

		r.SetMinIndexEntries(floor)
		out := mustRecover(t, r)
		if out.Superseded != 1 {
			t.Errorf("floor %d: Superseded = %d, want 1", floor, out.Superseded)
		}
		if got := mustContent(t, r, "p1.txt"); got != "latest" {
			t.Errorf("floor %d: content = %q, want latest", floor, got)
		}
		history := mustMeta(t, r, "p1.txt").Record.History
		if len(history) != 1 || history[0].SnapshotID != ref1.SnapshotID {
			t.Errorf("floor %d: History = %+v, want [%s]", floor, history, ref1.SnapshotID)
		}
		assertNothingPending(t, r)
	}
}

func TestRecover_OnlyLastEntryPerPromptRollsForward(t *testing.T) {
	r, _ := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "v0")
	interruptedUpdate(t, r, "p1.txt", "v1")
	ref1 := interruptedUpdate(t, r, "p1.txt", "v2")

	out := mustRecover(t, r)
	if out.Superseded != 1 || out.RolledForward != 1 {
		t.Errorf("Recover() = %+v, want 1 superseded and 1 rolled forward", out)
	}
	if got := mustContent(t, r, "p1.txt"); got != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
	history := mustMeta(t, r, "p1.txt").Record.History
	if len(history) != 1 || history[0].SnapshotID != ref1.SnapshotID {
		t.Errorf("History = %+v, want [%s]", history, ref1.SnapshotID)
	}
}

func TestRecover_NeverRollsBackForeignContent(t *testing.T) {
	r, _ := openRepo(t, 1)
	mustCreate(t, r, "p1.txt", "v0")
	interruptedUpdate(t, r, "p1.txt", "v1")
	if _, err := r.blobs.Write("p1.txt", "written elsewhere"); err != nil {
		t.Fatal(err)
	}

	r.SetMinIndexEntries(4)
	out := mustRecover(t, r)
	if out.Superseded != 1 || out.RolledBack != 0 {
		t.Errorf("Recover() = %+v, want 1 superseded and no rollback", out)
	}
	if got := mustContent(t, r, "p1.txt"); got != "written elsewhere" {
		t.Errorf("content = %q, want the blob kept", got)
	}
	assertNothingPending(t, r)
}

func TestRecover_NothingPending(t *testing.T) {
	r, _ := openRepo(t, 1)
	if out := mustRecover(t, r); out.Pending != 0 {
		t.Errorf("Pending = %d, want 0", out.Pending)
	}
}
