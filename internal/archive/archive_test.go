package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/quill/internal/errors"
)

func newArchive(t *testing.T, opts ...Option) *Archive {
	t.Helper()
	a, err := New(filepath.Join(t.TempDir(), "history"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestArchiveAndRetrieve(t *testing.T) {
	a := newArchive(t)

	ref, err := a.Archive("prompt1.txt", "old content")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.HasPrefix(ref.SnapshotID, "prompt1_v") || !strings.HasSuffix(ref.SnapshotID, ".txt") {
		t.Errorf("SnapshotID = %q, want prompt1_v<ulid>.txt", ref.SnapshotID)
	}
	if ref.CreatedAt.IsZero() {
		t.Errorf("CreatedAt is zero")
	}

	got, err := a.Retrieve(ref.SnapshotID)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got != "old content" {
		t.Errorf("Retrieve() = %q, want old content", got)
	}
}

func TestArchive_UniqueWithinOneClockTick(t *testing.T) {
	fixed := time.Date(2025, 6, 25, 11, 28, 30, 0, time.UTC)
	a := newArchive(t, WithClock(func() time.Time { return fixed }))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		ref, err := a.Archive("p1.txt", "v")
		if err != nil {
			t.Fatalf("Archive() #%d error = %v", i, err)
		}
		if seen[ref.SnapshotID] {
			t.Fatalf("duplicate snapshot id %q", ref.SnapshotID)
		}
		seen[ref.SnapshotID] = true
	}
}

func TestArchive_ContentIsByteExact(t *testing.T) {
	a := newArchive(t)
	content := "line one\r\n\tline two\x00 ünïcödé\n"

	ref, err := a.Archive("p1.txt", content)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	got, err := a.Retrieve(ref.SnapshotID)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got != content {
		t.Errorf("Retrieve() = %q, want %q", got, content)
	}
}

func TestRetrieve_Errors(t *testing.T) {
	a := newArchive(t)

	if _, err := a.Retrieve("p1_v01HZZZZZZZZZZZZZZZZZZZZZZZ.txt"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Retrieve(missing) error = %v, want NOT_FOUND", err)
	}
	if _, err := a.Retrieve("../metadata.json"); !errors.Is(err, errors.ErrInvalidIdentifier) {
		t.Errorf("Retrieve(traversal) error = %v, want INVALID_IDENTIFIER", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newArchive(t, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	var ids []string
	for i := 0; i < 3; i++ {
		ref, err := a.Archive("p1.txt", "v")
		if err != nil {
			t.Fatalf("Archive() error = %v", err)
		}
		ids = append(ids, ref.SnapshotID)
	}
	// Another prompt whose name shares the prefix must not leak in.
	if _, err := a.Archive("p1_v2.txt", "other"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	// Legacy snapshot name.
	legacy := "p1_v20240101T000000.txt"
	if err := os.WriteFile(filepath.Join(a.Dir(), legacy), []byte("legacy"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	refs, err := a.List("p1.txt")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{ids[2], ids[1], ids[0], legacy}
	if len(refs) != len(want) {
		t.Fatalf("List() returned %d refs, want %d: %+v", len(refs), len(want), refs)
	}
	for i := range want {
		if refs[i].SnapshotID != want[i] {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i].SnapshotID, want[i])
		}
	}
}

func TestList_Empty(t *testing.T) {
	a := newArchive(t)
	refs, err := a.List("nothing.txt")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("List() = %v, want empty", refs)
	}
}

func TestBelongsTo(t *testing.T) {
	tests := []struct {
		snapshot string
		id       string
		want     bool
	}{
		{snapshot: "a_v01J9ZQ2Y3K4M5N6P7Q8R9S0T1V.txt", id: "a.txt", want: true},
		{snapshot: "a_v20240131T101500.txt", id: "a.txt", want: true},
		{snapshot: "a_vX_v01J9ZQ2Y3K4M5N6P7Q8R9S0T1V.txt", id: "a.txt", want: false},
		{snapshot: "a_vX_v01J9ZQ2Y3K4M5N6P7Q8R9S0T1V.txt", id: "a_vX.txt", want: true},
		{snapshot: "b_v01J9ZQ2Y3K4M5N6P7Q8R9S0T1V.txt", id: "a.txt", want: false},
		{snapshot: "a_vnotasuffix.txt", id: "a.txt", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.snapshot+"/"+tt.id, func(t *testing.T) {
			if got := BelongsTo(tt.snapshot, tt.id); got != tt.want {
				t.Errorf("BelongsTo(%q, %q) = %v, want %v", tt.snapshot, tt.id, got, tt.want)
			}
		})
	}
}
