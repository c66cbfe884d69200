package ops

import (
	"context"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffInput contains parameters for the Diff operation.
type DiffInput struct {
	ID         string
	SnapshotID string
}

// DiffChunk is one run of equal, inserted or deleted text.
type DiffChunk struct {
	Op   string `json:"op"` // "equal", "insert", "delete"
	Text string `json:"text"`
}

// DiffOutput compares a snapshot (old) with the current content (new).
type DiffOutput struct {
	ID         string      `json:"id"`
	SnapshotID string      `json:"snapshot_id"`
	Identical  bool        `json:"identical"`
	Inserted   int         `json:"inserted_chars"`
	Deleted    int         `json:"deleted_chars"`
	Chunks     []DiffChunk `json:"chunks"`
	Patch      string      `json:"patch"`
}

// Diff reports how the current content differs from a snapshot.
func (r *Repository) Diff(ctx context.Context, input DiffInput) (*DiffOutput, error) {
	snap, err := r.Snapshot(ctx, SnapshotInput{SnapshotID: input.SnapshotID})
	if err != nil {
		return nil, err
	}
	cur, err := r.ReadContent(ctx, ReadContentInput{ID: input.ID})
	if err != nil {
		return nil, err
	}

	out := DiffText(snap.Content, cur.Content)
	out.ID = input.ID
	out.SnapshotID = input.SnapshotID
	return out, nil
}

// DiffText computes a semantic diff from old to updated.
func DiffText(old, updated string) *DiffOutput {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(old, updated, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	out := &DiffOutput{Identical: old == updated, Chunks: make([]DiffChunk, 0, len(diffs))}
	for _, d := range diffs {
		var op string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "insert"
			out.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			op = "delete"
			out.Deleted += len([]rune(d.Text))
		default:
			op = "equal"
		}
		out.Chunks = append(out.Chunks, DiffChunk{Op: op, Text: d.Text})
	}
	out.Patch = dmp.PatchToText(dmp.PatchMake(old, diffs))
	return out
}

// Pretty renders chunks as +/- prefixed lines for terminal output.
func (d *DiffOutput) Pretty() string {
	var b strings.Builder
	for _, c := range d.Chunks {
		prefix := "  "
		switch c.Op {
		case "insert":
			prefix = "+ "
		case "delete":
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(c.Text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
