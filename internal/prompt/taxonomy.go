package prompt

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// TagGroup is an exclusive group: a prompt holds at most one of its options.
type TagGroup struct {
	Label   string   `yaml:"label" json:"label"`
	Options []string `yaml:"options" json:"options"`
}

// Has reports whether tag is one of the group's options.
func (g TagGroup) Has(tag string) bool {
	return slices.Contains(g.Options, tag)
}

// Taxonomy is the ordered set of exclusive tag groups presented to editors.
// It is presentation configuration; the store accepts any tag set.
type Taxonomy struct {
	Groups []TagGroup `yaml:"groups" json:"groups"`
}

var focusOptions = []string{
	"Reading", "Writing", "Listening", "Speaking", "Grammar", "Vocabulary", "Pronunciation", "Functional Language",
}

// DefaultTaxonomy returns the built-in tag groups.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{Groups: []TagGroup{
		{Label: "Primary Focus", Options: slices.Clone(focusOptions)},
		{Label: "Duration (Minutes)", Options: []string{"30", "45", "60", "90", "120"}},
		{Label: "Language Level (CEFR)", Options: []string{
			"A1 (Beginner)", "A2 (Elementary)", "B1 (Intermediate)",
			"B2 (Upper-Intermediate)", "C1 (Advanced)", "C2 (Proficiency)",
		}},
		{Label: "Age Group", Options: []string{
			"Early Years (5–7)", "Primary (8–11)", "Lower Secondary (12–14)",
			"Upper Secondary (15–17)", "Adults (18+)",
		}},
		{Label: "Secondary Focus", Options: slices.Clone(focusOptions)},
	}}
}

// LoadTaxonomy reads a YAML taxonomy file. An empty path yields the default.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag groups: %w", err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tag groups: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Taxonomy) validate() error {
	if len(t.Groups) == 0 {
		return fmt.Errorf("tag groups: no groups defined")
	}
	seen := make(map[string]bool)
	for i, g := range t.Groups {
		label := strings.TrimSpace(g.Label)
		if label == "" {
			return fmt.Errorf("tag groups: group %d has no label", i)
		}
		if seen[label] {
			return fmt.Errorf("tag groups: duplicate group %q", label)
		}
		seen[label] = true
		if len(g.Options) == 0 {
			return fmt.Errorf("tag groups: group %q has no options", label)
		}
	}
	return nil
}

// Group finds a group by label.
func (t *Taxonomy) Group(label string) (TagGroup, bool) {
	for _, g := range t.Groups {
		if g.Label == label {
			return g, true
		}
	}
	return TagGroup{}, false
}

// Select returns a new tag set in which option is the only selection from
// the named group. Other groups' selections and custom tags are preserved in
// order.
func (t *Taxonomy) Select(tags []string, group, option string) ([]string, error) {
	g, ok := t.Group(group)
	if !ok {
		return nil, fmt.Errorf("unknown tag group %q", group)
	}
	if !g.Has(option) {
		return nil, fmt.Errorf("%q is not an option of %q", option, group)
	}
	out := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		if !g.Has(tag) {
			out = append(out, tag)
		}
	}
	out = append(out, option)
	return NormalizeTags(out), nil
}

// Clear removes every option of the named group from tags.
func (t *Taxonomy) Clear(tags []string, group string) []string {
	g, ok := t.Group(group)
	if !ok {
		return NormalizeTags(tags)
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !g.Has(tag) {
			out = append(out, tag)
		}
	}
	return NormalizeTags(out)
}

// Custom returns the tags that belong to no group.
func (t *Taxonomy) Custom(tags []string) []string {
	out := make([]string, 0)
	for _, tag := range NormalizeTags(tags) {
		if !t.known(tag) {
			out = append(out, tag)
		}
	}
	return out
}

// Selected returns the current selection for a group, or "".
func (t *Taxonomy) Selected(tags []string, group string) string {
	g, ok := t.Group(group)
	if !ok {
		return ""
	}
	for _, tag := range tags {
		if g.Has(tag) {
			return tag
		}
	}
	return ""
}

func (t *Taxonomy) known(tag string) bool {
	for _, g := range t.Groups {
		if g.Has(tag) {
			return true
		}
	}
	return false
}
