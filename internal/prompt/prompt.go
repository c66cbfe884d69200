// Package prompt holds the domain types shared by the store layers: the
// per-prompt metadata record, history references, identifier rules and the
// tag taxonomy.
package prompt

import (
	"regexp"
	"strings"
	"time"

	"github.com/hpungsan/quill/internal/errors"
)

// MaxIDLength bounds identifiers and snapshot ids in bytes.
const MaxIDLength = 128

// Suffix is the fixed extension every prompt identifier carries.
const Suffix = ".txt"

// DefaultComponent is the group assigned when a create omits one.
const DefaultComponent = "call1"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+\.txt$`)

// Record is the metadata kept for one prompt in the index. Content lives in
// the blob store, not here.
type Record struct {
	Label     string       `json:"label"`
	Component string       `json:"component"`
	Tags      []string     `json:"tags"`
	History   []VersionRef `json:"history"`
}

// VersionRef points at an archived snapshot. The JSON names match the
// on-disk metadata.json format.
type VersionRef struct {
	SnapshotID string    `json:"filename"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r Record) Clone() Record {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.History != nil {
		out.History = append([]VersionRef(nil), r.History...)
	}
	return out
}

// ValidateID checks that id is a safe file name ending in .txt.
// No I/O is performed; the rules alone prevent path escape.
func ValidateID(id string) error {
	if !validName(id) {
		return errors.NewInvalidIdentifier(id)
	}
	return nil
}

// ValidateSnapshotID applies the same rules to archived snapshot names.
func ValidateSnapshotID(id string) error {
	if !validName(id) {
		return errors.NewInvalidIdentifier(id)
	}
	return nil
}

func validName(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	if strings.HasPrefix(id, ".") || strings.Contains(id, "..") {
		return false
	}
	return idPattern.MatchString(id)
}

// Base strips the .txt suffix from an identifier.
func Base(id string) string {
	return strings.TrimSuffix(id, Suffix)
}

// NormalizeTags trims whitespace, drops empty tags and removes duplicates,
// keeping the first occurrence order. Never returns nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
