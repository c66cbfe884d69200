package client

import (
	"context"
	"net/url"

	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/prompt"
	"github.com/hpungsan/quill/internal/session"
)

var _ session.Backend = (*Client)(nil)

// Healthz checks that the server is up.
func (c *Client) Healthz(ctx context.Context) error {
	return c.Get(ctx, "/healthz", nil)
}

// List returns the index, optionally filtered by query.
func (c *Client) List(ctx context.Context, query string) (*ops.ListOutput, error) {
	var out ops.ListOutput
	if err := c.Get(ctx, "/api/prompts?q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGrouped returns prompts grouped by component.
func (c *Client) ListGrouped(ctx context.Context, query string) (*ops.ListGroupedOutput, error) {
	var out ops.ListGroupedOutput
	if err := c.Get(ctx, "/api/prompts?grouped=true&q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadContent returns a prompt's current text.
func (c *Client) ReadContent(ctx context.Context, id string) (string, error) {
	var out ops.ReadContentOutput
	if err := c.Get(ctx, promptPath(id), &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// ReadMetadata returns a prompt's index record.
func (c *Client) ReadMetadata(ctx context.Context, id string) (prompt.Record, error) {
	var out ops.ReadMetadataOutput
	if err := c.Get(ctx, promptPath(id, "metadata"), &out); err != nil {
		return prompt.Record{}, err
	}
	return out.Record, nil
}

// SaveRequest mirrors the body of POST /api/prompts/{id}.
type SaveRequest struct {
	Content   string   `json:"content"`
	Label     *string  `json:"label,omitempty"`
	Component *string  `json:"component,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Save creates or updates a prompt.
func (c *Client) Save(ctx context.Context, id string, req SaveRequest) (*ops.SaveOutput, error) {
	var out ops.SaveOutput
	if err := c.Post(ctx, promptPath(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateContent saves new content and returns the snapshot that archived
// the previous content. The route is create-or-update, so a prompt deleted
// on the server is recreated and the returned ref is zero.
func (c *Client) UpdateContent(ctx context.Context, id, content string) (prompt.VersionRef, error) {
	out, err := c.Save(ctx, id, SaveRequest{Content: content})
	if err != nil {
		return prompt.VersionRef{}, err
	}
	if out.Snapshot == nil {
		return prompt.VersionRef{}, nil
	}
	return *out.Snapshot, nil
}

// UpdateTags replaces a prompt's tags.
func (c *Client) UpdateTags(ctx context.Context, id string, tags []string) ([]string, error) {
	var out ops.UpdateTagsOutput
	if tags == nil {
		tags = []string{}
	}
	if err := c.Post(ctx, promptPath(id, "tags"), map[string][]string{"tags": tags}, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

// DeletePrompt removes a prompt.
func (c *Client) DeletePrompt(ctx context.Context, id string) (*ops.DeleteOutput, error) {
	var out ops.DeleteOutput
	if err := c.Delete(ctx, promptPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists a prompt's snapshots.
func (c *Client) History(ctx context.Context, id string) (*ops.HistoryOutput, error) {
	var out ops.HistoryOutput
	if err := c.Get(ctx, promptPath(id, "history"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Snapshot reads archived content.
func (c *Client) Snapshot(ctx context.Context, snapshotID string) (*ops.SnapshotOutput, error) {
	var out ops.SnapshotOutput
	if err := c.Get(ctx, "/api/history/"+url.PathEscape(snapshotID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Restore makes a snapshot current again.
func (c *Client) Restore(ctx context.Context, id, snapshotID string) (*ops.RestoreOutput, error) {
	var out ops.RestoreOutput
	if err := c.Post(ctx, promptPath(id, "restore"), map[string]string{"snapshot": snapshotID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Diff compares a snapshot with the current content.
func (c *Client) Diff(ctx context.Context, id, snapshotID string) (*ops.DiffOutput, error) {
	var out ops.DiffOutput
	if err := c.Get(ctx, promptPath(id, "diff")+"?snapshot="+url.QueryEscape(snapshotID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview returns the HTML preview page.
func (c *Client) Preview(ctx context.Context, id string) (string, error) {
	body, err := c.GetRaw(ctx, promptPath(id, "preview"))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Render substitutes placeholders server-side.
func (c *Client) Render(ctx context.Context, id string, vars map[string]string, strict bool) (*ops.RenderOutput, error) {
	var out ops.RenderOutput
	body := map[string]any{"vars": vars, "strict": strict}
	if err := c.Post(ctx, promptPath(id, "render"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TagGroups returns the server's exclusive tag groups.
func (c *Client) TagGroups(ctx context.Context) (*prompt.Taxonomy, error) {
	var out prompt.Taxonomy
	if err := c.Get(ctx, "/api/tag-groups", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
