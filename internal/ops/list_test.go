package ops

import (
	"context"
	"slices"
	"testing"

	"github.com/hpungsan/quill/internal/prompt"
)

func TestGroupKey(t *testing.T) {
	tests := []struct {
		id        string
		component string
		want      string
	}{
		{id: "x.txt", component: "call2", want: "call2"},
		{id: "prompt12_intro.txt", component: "", want: "prompt12"},
		{id: "prompt.txt", component: "  ", want: OtherGroup},
		{id: "notes.txt", component: "", want: OtherGroup},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := GroupKey(tt.id, prompt.Record{Component: tt.component}); got != tt.want {
				t.Errorf("GroupKey(%q, %q) = %q, want %q", tt.id, tt.component, got, tt.want)
			}
		})
	}
}

func TestListGrouped(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{ID: "b.txt", Label: "Beta", Component: "call2"},
		{ID: "a.txt", Label: "Alpha", Component: "call2"},
		{ID: "c.txt", Label: "Gamma", Component: "call1", Tags: []string{"Grammar"}},
	} {
		if _, err := r.Create(ctx, in); err != nil {
			t.Fatalf("Create(%s) error = %v", in.ID, err)
		}
	}

	out, err := r.ListGrouped(ctx, ListInput{})
	if err != nil {
		t.Fatalf("ListGrouped() error = %v", err)
	}
	if out.Total != 3 {
		t.Errorf("Total = %d, want 3", out.Total)
	}
	if len(out.Groups) != 2 {
		t.Fatalf("len(Groups) = %d, want 2", len(out.Groups))
	}
	if out.Groups[0].Component != "call1" || out.Groups[1].Component != "call2" {
		t.Errorf("groups = %s, %s, want call1, call2", out.Groups[0].Component, out.Groups[1].Component)
	}
	entries := out.Groups[1].Entries
	if len(entries) != 2 || entries[0].ID != "a.txt" || entries[1].ID != "b.txt" {
		t.Errorf("call2 entries = %+v, want a.txt, b.txt", entries)
	}
}

func TestList_Filter(t *testing.T) {
	r, _ := openRepo(t, 1)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{ID: "warmup.txt", Label: "Warm-up"},
		{ID: "main.txt", Label: "Main activity", Tags: []string{"Grammar"}},
		{ID: "closing.txt", Label: "Wrap", Component: "call9"},
	} {
		if _, err := r.Create(ctx, in); err != nil {
			t.Fatalf("Create(%s) error = %v", in.ID, err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"closing.txt", "main.txt", "warmup.txt"}},
		{query: "WARM", want: []string{"warmup.txt"}},
		{query: "grammar", want: []string{"main.txt"}},
		{query: "call9", want: []string{"closing.txt"}},
		{query: "main.txt", want: []string{"main.txt"}},
		{query: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, err := r.List(ctx, ListInput{Query: tt.query})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := make([]string, 0, len(out.Prompts))
			for id := range out.Prompts {
				got = append(got, id)
			}
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("List(%q) = %v, want %v", tt.query, got, tt.want)
			}
			if out.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", out.Total, len(tt.want))
			}
		})
	}
}
