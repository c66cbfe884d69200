package ops

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/hpungsan/quill/internal/prompt"
)

// OtherGroup collects prompts with no component and no promptN prefix.
const OtherGroup = "Other"

var promptPrefixRegex = regexp.MustCompile(`^prompt\d+`)

// ListInput contains parameters for the List and ListGrouped operations.
type ListInput struct {
	// Query is matched case-insensitively against the identifier, the label
	// and the JSON form of the record. Empty matches everything.
	Query string
}

// ListOutput is the full (optionally filtered) index keyed by identifier.
type ListOutput struct {
	Prompts map[string]prompt.Record `json:"prompts"`
	Total   int                      `json:"total"`
}

// List returns the metadata index, filtered by Query.
func (r *Repository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	entries, err := r.index.List()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(input.Query))
	out := make(map[string]prompt.Record, len(entries))
	for id, rec := range entries {
		if matches(q, id, rec) {
			out[id] = rec
		}
	}
	return &ListOutput{Prompts: out, Total: len(out)}, nil
}

// ListEntry is one prompt inside a group.
type ListEntry struct {
	ID     string        `json:"id"`
	Record prompt.Record `json:"record"`
}

// ListGroup is the set of prompts sharing a group key.
type ListGroup struct {
	Component string      `json:"component"`
	Entries   []ListEntry `json:"entries"`
}

// ListGroupedOutput is the grouped projection of the index.
type ListGroupedOutput struct {
	Groups []ListGroup `json:"groups"`
	Total  int         `json:"total"`
}

// ListGrouped groups the filtered index by component. Groups are sorted by
// key and entries by identifier. It never mutates.
func (r *Repository) ListGrouped(ctx context.Context, input ListInput) (*ListGroupedOutput, error) {
	listed, err := r.List(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ListGroupedOutput{Groups: GroupByComponent(listed.Prompts), Total: listed.Total}, nil
}

// GroupByComponent builds the grouped listing from a set of records.
func GroupByComponent(entries map[string]prompt.Record) []ListGroup {
	byKey := make(map[string][]ListEntry)
	for id, rec := range entries {
		key := GroupKey(id, rec)
		byKey[key] = append(byKey[key], ListEntry{ID: id, Record: rec})
	}

	groups := make([]ListGroup, 0, len(byKey))
	for key, items := range byKey {
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		groups = append(groups, ListGroup{Component: key, Entries: items})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Component < groups[j].Component })
	return groups
}

// GroupKey returns the record's component, falling back to the promptN
// prefix of the identifier, then OtherGroup.
func GroupKey(id string, rec prompt.Record) string {
	if c := strings.TrimSpace(rec.Component); c != "" {
		return c
	}
	if m := promptPrefixRegex.FindString(id); m != "" {
		return m
	}
	return OtherGroup
}

func matches(q, id string, rec prompt.Record) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(id), q) || strings.Contains(strings.ToLower(rec.Label), q) {
		return true
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), q)
}
