package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/logging"
	"github.com/hpungsan/quill/internal/mcp"
	"github.com/hpungsan/quill/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true, "edit": true,
	"create": true, "show": true, "meta": true, "save": true, "tags": true,
	"delete": true, "list": true, "history": true, "snapshot": true,
	"restore": true, "diff": true, "render": true, "migrate": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __ _ _   _(_) | |
  / _' | | | | | | |
 | (_| | |_| | | | |
  \__, |\__,_|_|_|_|
     |_|

  Versioned prompt store

  Usage: quill <command> [options]
         quill --help

  MCP server mode requires piped input.`)
}

// resolveBaseDir returns $QUILL_DIR or ~/.quill.
func resolveBaseDir() (string, error) {
	if dir := os.Getenv(config.EnvDir); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".quill"), nil
}

// appEnv carries what commands need. The repository is opened on first use
// so commands that only talk to a remote server never touch the base dir.
type appEnv struct {
	baseDir string
	cfg     *config.Config
	logger  *zap.Logger
	repo    *ops.Repository
}

func newAppEnv(baseDir string, cfg *config.Config, logger *zap.Logger) *appEnv {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appEnv{baseDir: baseDir, cfg: cfg, logger: logger}
}

// Repo opens the local repository.
func (e *appEnv) Repo() (*ops.Repository, error) {
	if e.repo != nil {
		return e.repo, nil
	}
	if err := os.MkdirAll(e.baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", e.baseDir, err)
	}
	repo, err := ops.Open(e.baseDir, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.repo = repo
	return repo, nil
}

// Close releases the repository if it was opened.
func (e *appEnv) Close() {
	if e.repo != nil {
		_ = e.repo.Close()
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before touching the base directory
	if isHelpOrVersion() {
		app := newCLIApp(newAppEnv("", nil, nil))
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	config.LoadDotEnv("")
	baseDir, err := resolveBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	config.LoadDotEnv(baseDir)

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logging.Set(logger)

	code := run(newAppEnv(baseDir, cfg, logger))
	logging.Sync()
	os.Exit(code)
}

func run(env *appEnv) int {
	defer env.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'quill --help' for usage.\n")
		return 1
	}

	// MCP server mode (default)
	if err := runMCP(env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runMCP(env *appEnv) error {
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		env.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	repo, err := env.Repo()
	if err != nil {
		return err
	}
	return mcp.Run(repo, env.cfg, Version)
}
