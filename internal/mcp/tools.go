package mcp

import "github.com/mark3labs/mcp-go/mcp"

const idDescription = "Prompt identifier: letters, digits, '_', '-', '.', ending in .txt"

var listToolDef = mcp.NewTool("prompt_list",
	mcp.WithDescription("List prompts and their metadata. Optionally filter by a case-insensitive query and group by component."),
	mcp.WithString("query", mcp.Description("Substring matched against identifier, label and metadata")),
	mcp.WithBoolean("grouped", mcp.Description("Group results by component")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("prompt_get",
	mcp.WithDescription("Read a prompt's current content and metadata."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithBoolean("include_content", mcp.Description("Include the prompt text (default true)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var createToolDef = mcp.NewTool("prompt_create",
	mcp.WithDescription("Create a new prompt. Fails with ALREADY_EXISTS if the identifier is taken."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithString("content", mcp.Required(), mcp.Description("Prompt text")),
	mcp.WithString("label", mcp.Description("Display label; defaults to the identifier without .txt")),
	mcp.WithString("component", mcp.Description("Component group; defaults to call1")),
	mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
)

var updateToolDef = mcp.NewTool("prompt_update",
	mcp.WithDescription("Replace a prompt's content. The previous content is archived as a snapshot first."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithString("content", mcp.Required(), mcp.Description("New prompt text")),
)

var tagsToolDef = mcp.NewTool("prompt_tags",
	mcp.WithDescription("Replace a prompt's tag set."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithArray("tags", mcp.Required(), mcp.Description("Complete new tag set"), mcp.WithStringItems()),
)

var deleteToolDef = mcp.NewTool("prompt_delete",
	mcp.WithDescription("Delete a prompt. Its archived snapshots are kept."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithDestructiveHintAnnotation(true),
)

var historyToolDef = mcp.NewTool("prompt_history",
	mcp.WithDescription("List a prompt's archived snapshots, newest first, plus unreferenced snapshots on disk."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithReadOnlyHintAnnotation(true),
)

var snapshotToolDef = mcp.NewTool("prompt_snapshot",
	mcp.WithDescription("Read archived snapshot content by snapshot id."),
	mcp.WithString("snapshot_id", mcp.Required(), mcp.Description("Snapshot id from prompt_history")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var restoreToolDef = mcp.NewTool("prompt_restore",
	mcp.WithDescription("Make a snapshot's content current again. The content being replaced is archived first."),
	mcp.WithString("id", mcp.Required(), mcp.Description(idDescription)),
	mcp.WithString("snapshot_id", mcp.Required(), mcp.Description("Snapshot id from prompt_history")),
)
