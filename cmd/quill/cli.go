package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/web"
)

// maxStdinBytes caps prompt text read from stdin.
const maxStdinBytes = 8 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "quill",
		Usage:   "Versioned prompt store",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(env),
			mcpCmd(env),
			editCmd(env),
			createCmd(env),
			showCmd(env),
			metaCmd(env),
			saveCmd(env),
			tagsCmd(env),
			deleteCmd(env),
			listCmd(env),
			historyCmd(env),
			snapshotCmd(env),
			restoreCmd(env),
			diffCmd(env),
			renderCmd(env),
			migrateCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withRepo opens the local repository and runs fn with it.
func withRepo(env *appEnv, fn func(c *cli.Context, repo *ops.Repository) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		repo, err := env.Repo()
		if err != nil {
			return outputError(err)
		}
		return fn(c, repo)
	}
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("expected %d argument(s): %s", n, c.Command.ArgsUsage)))
	}
	return nil
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (requires an admin secret)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			cfg := *env.cfg
			if c.IsSet("bind") {
				cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}

			srv, err := web.NewServer(repo, &cfg, env.logger, Version)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			watcher, err := config.NewWatcher(env.baseDir, env.cfg, env.logger)
			if err != nil {
				env.logger.Warn("config hot reload disabled", zap.Error(err))
			} else {
				watcher.OnChange(srv.ApplyConfig)
				if err := watcher.Start(); err != nil {
					env.logger.Warn("config hot reload disabled", zap.Error(err))
				} else {
					defer watcher.Stop()
				}
			}

			return web.Run(srv.HTTPServer(), env.logger)
		}),
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := runMCP(env); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// createCmd creates the create command.
func createCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a prompt (reads content from stdin or --file)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Display label (defaults to id without .txt)"},
			&cli.StringFlag{Name: "component", Aliases: []string{"c"}, Usage: "Component group (default call1)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read content from file"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			content, err := readContent(c)
			if err != nil {
				return outputError(err)
			}

			output, err := repo.Create(c.Context, ops.CreateInput{
				ID:        c.Args().First(),
				Label:     c.String("label"),
				Component: c.String("component"),
				Tags:      parseTags(c.String("tags")),
				Content:   content,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a prompt's current content",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Print the content only"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := repo.ReadContent(c.Context, ops.ReadContentInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := io.WriteString(os.Stdout, output.Content)
				return err
			}
			return outputJSON(output)
		}),
	}
}

// metaCmd creates the meta command.
func metaCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "meta",
		Usage:     "Show a prompt's metadata record",
		ArgsUsage: "<id>",
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := repo.ReadMetadata(c.Context, ops.ReadMetadataInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// saveCmd creates the save command.
func saveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Create or update a prompt (reads content from stdin or --file)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "New display label"},
			&cli.StringFlag{Name: "component", Aliases: []string{"c"}, Usage: "New component group"},
			&cli.StringFlag{Name: "tags", Usage: "New comma-separated tags"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read content from file"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			content, err := readContent(c)
			if err != nil {
				return outputError(err)
			}

			input := ops.SaveInput{ID: c.Args().First(), Content: content}
			if c.IsSet("label") {
				label := c.String("label")
				input.Label = &label
			}
			if c.IsSet("component") {
				component := c.String("component")
				input.Component = &component
			}
			if c.IsSet("tags") {
				input.Tags = parseTags(c.String("tags"))
				if input.Tags == nil {
					input.Tags = []string{}
				}
			}

			output, err := repo.Save(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// tagsCmd creates the tags command.
func tagsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "tags",
		Usage:     "Replace a prompt's tags, or select one option of an exclusive group",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "set", Usage: "Comma-separated tags replacing the current set (empty clears)"},
			&cli.StringFlag{Name: "select", Usage: "Group=Option; replaces any other option of that group"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			id := c.Args().First()

			var tags []string
			switch {
			case c.IsSet("set"):
				tags = parseTags(c.String("set"))
			case c.IsSet("select"):
				group, option, ok := strings.Cut(c.String("select"), "=")
				if !ok {
					return outputError(errors.NewInvalidRequest("--select must be Group=Option"))
				}
				meta, err := repo.ReadMetadata(c.Context, ops.ReadMetadataInput{ID: id})
				if err != nil {
					return outputError(err)
				}
				tags, err = repo.Taxonomy().Select(meta.Record.Tags, strings.TrimSpace(group), strings.TrimSpace(option))
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			default:
				return outputError(errors.NewInvalidRequest("one of --set or --select is required"))
			}

			output, err := repo.UpdateTags(c.Context, ops.UpdateTagsInput{ID: id, Tags: tags})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a prompt (snapshots are kept)",
		ArgsUsage: "<id>",
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := repo.Delete(c.Context, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List prompts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive filter"},
			&cli.BoolFlag{Name: "grouped", Aliases: []string{"g"}, Usage: "Group by component"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			input := ops.ListInput{Query: c.String("query")}
			if c.Bool("grouped") {
				output, err := repo.ListGrouped(c.Context, input)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}
			output, err := repo.List(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// historyCmd creates the history command.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List a prompt's snapshots",
		ArgsUsage: "<id>",
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := repo.History(c.Context, ops.HistoryInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// snapshotCmd creates the snapshot command.
func snapshotCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "snapshot",
		Usage:     "Show archived snapshot content",
		ArgsUsage: "<snapshot-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Print the content only"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			output, err := repo.Snapshot(c.Context, ops.SnapshotInput{SnapshotID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := io.WriteString(os.Stdout, output.Content)
				return err
			}
			return outputJSON(output)
		}),
	}
}

// restoreCmd creates the restore command.
func restoreCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Make a snapshot's content current again",
		ArgsUsage: "<id> <snapshot-id>",
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			output, err := repo.Restore(c.Context, ops.RestoreInput{ID: c.Args().Get(0), SnapshotID: c.Args().Get(1)})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// diffCmd creates the diff command.
func diffCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Compare a snapshot with the current content",
		ArgsUsage: "<id> <snapshot-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pretty", Usage: "Print +/- lines instead of JSON"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			output, err := repo.Diff(c.Context, ops.DiffInput{ID: c.Args().Get(0), SnapshotID: c.Args().Get(1)})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("pretty") {
				_, err := io.WriteString(os.Stdout, output.Pretty())
				return err
			}
			return outputJSON(output)
		}),
	}
}

// renderCmd creates the render command.
func renderCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Substitute {{name}} placeholders in a prompt",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "var", Usage: "name=value (repeatable)"},
			&cli.BoolFlag{Name: "strict", Usage: "Fail when a placeholder has no value"},
			&cli.BoolFlag{Name: "raw", Usage: "Print the rendered text only"},
		},
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			vars, err := parseVars(c.StringSlice("var"))
			if err != nil {
				return outputError(err)
			}
			output, err := repo.Render(c.Context, ops.RenderInput{ID: c.Args().First(), Vars: vars, Strict: c.Bool("strict")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := io.WriteString(os.Stdout, output.Content)
				return err
			}
			return outputJSON(output)
		}),
	}
}

// migrateCmd creates the migrate command.
func migrateCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Convert a legacy array-shaped metadata.json to the keyed form",
		Action: withRepo(env, func(c *cli.Context, repo *ops.Repository) error {
			output, err := repo.Index().Migrate()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		}),
	}
}

// outputJSON writes JSON output to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if qErr, ok := err.(*errors.QuillError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readContent reads prompt text from --file or piped stdin. Content is
// stored byte-for-byte; nothing is trimmed.
func readContent(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.NewInvalidRequest("read --file: " + err.Error())
		}
		return string(data), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("content must be piped via stdin or given with --file")
	}
	return readStdin()
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, up to maxStdinBytes.
func readStdin() (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinBytes+1))
	if err != nil {
		return "", errors.NewIOFailure("read stdin", err)
	}
	if len(data) > maxStdinBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", maxStdinBytes))
	}
	return string(data), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseVars turns name=value pairs into a map.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid --var %q, want name=value", p))
		}
		vars[name] = value
	}
	return vars, nil
}
