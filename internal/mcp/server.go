// Package mcp exposes the prompt store as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"prompt_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"prompt_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"prompt_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"prompt_update": {
		def:     updateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"prompt_tags": {
		def:     tagsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTags },
	},
	"prompt_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"prompt_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"prompt_snapshot": {
		def:     snapshotToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshot },
	},
	"prompt_restore": {
		def:     restoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRestore },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the prompt tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(repo *ops.Repository, cfg *config.Config, version string) *server.MCPServer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := server.NewMCPServer(
		"quill",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(repo)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(repo *ops.Repository, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(repo, cfg, version))
}
