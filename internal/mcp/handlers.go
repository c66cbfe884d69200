package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/logging"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/prompt"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	repo *ops.Repository
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(repo *ops.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// ListRequest represents the arguments for prompt_list.
type ListRequest struct {
	Query   string `json:"query,omitempty"`
	Grouped bool   `json:"grouped,omitempty"`
}

// GetRequest represents the arguments for prompt_get.
type GetRequest struct {
	ID             string `json:"id"`
	IncludeContent *bool  `json:"include_content,omitempty"`
}

// GetOutput is the result of prompt_get.
type GetOutput struct {
	ID      string        `json:"id"`
	Content *string       `json:"content,omitempty"`
	Record  prompt.Record `json:"record"`
}

// CreateRequest represents the arguments for prompt_create.
type CreateRequest struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Label     string   `json:"label,omitempty"`
	Component string   `json:"component,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// UpdateRequest represents the arguments for prompt_update.
type UpdateRequest struct {
	ID      string  `json:"id"`
	Content *string `json:"content"`
}

// TagsRequest represents the arguments for prompt_tags.
type TagsRequest struct {
	ID   string    `json:"id"`
	Tags *[]string `json:"tags"`
}

// IDRequest represents the arguments for tools that take only an id.
type IDRequest struct {
	ID string `json:"id"`
}

// SnapshotRequest represents the arguments for prompt_snapshot.
type SnapshotRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

// RestoreRequest represents the arguments for prompt_restore.
type RestoreRequest struct {
	ID         string `json:"id"`
	SnapshotID string `json:"snapshot_id"`
}

// HandleList handles the prompt_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Grouped {
		out, err := h.repo.ListGrouped(ctx, ops.ListInput{Query: input.Query})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(out)
	}
	out, err := h.repo.List(ctx, ops.ListInput{Query: input.Query})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleGet handles the prompt_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	meta, err := h.repo.ReadMetadata(ctx, ops.ReadMetadataInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	out := GetOutput{ID: meta.ID, Record: meta.Record}

	if input.IncludeContent == nil || *input.IncludeContent {
		content, err := h.repo.ReadContent(ctx, ops.ReadContentInput{ID: input.ID})
		if err != nil {
			return errorResult(err), nil
		}
		out.Content = &content.Content
	}
	return successResult(out)
}

// HandleCreate handles the prompt_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.repo.Create(ctx, ops.CreateInput{
		ID:        input.ID,
		Label:     input.Label,
		Component: input.Component,
		Tags:      input.Tags,
		Content:   input.Content,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleUpdate handles the prompt_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Content == nil {
		return errorResult(errors.NewInvalidRequest("content is required")), nil
	}

	out, err := h.repo.UpdateContent(ctx, ops.UpdateContentInput{ID: input.ID, Content: *input.Content})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleTags handles the prompt_tags tool call.
func (h *Handlers) HandleTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Tags == nil {
		return errorResult(errors.NewInvalidRequest("tags is required")), nil
	}

	out, err := h.repo.UpdateTags(ctx, ops.UpdateTagsInput{ID: input.ID, Tags: *input.Tags})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleDelete handles the prompt_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.repo.Delete(ctx, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleHistory handles the prompt_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.repo.History(ctx, ops.HistoryInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleSnapshot handles the prompt_snapshot tool call.
func (h *Handlers) HandleSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.repo.Snapshot(ctx, ops.SnapshotInput{SnapshotID: input.SnapshotID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleRestore handles the prompt_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := h.repo.Restore(ctx, ops.RestoreInput{ID: input.ID, SnapshotID: input.SnapshotID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// errorResult creates an error result for MCP responses.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if qErr, ok := err.(*errors.QuillError); ok {
		errorObj := map[string]any{
			"code":    qErr.Code,
			"message": qErr.Message,
			"status":  qErr.Status,
		}
		// Internal details may carry file paths.
		if qErr.Code != errors.ErrInternal && qErr.Details != nil {
			errorObj["details"] = qErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		// stdout carries the protocol; the cause only goes to the log.
		logging.L().Error("mcp tool failed", zap.Error(err))
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a success result with JSON payload.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
