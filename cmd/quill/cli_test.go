package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/index"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/session"
)

// setupTestEnv creates an app environment over a temp base dir.
func setupTestEnv(t *testing.T) *appEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MinIndexEntries = 1
	env := newAppEnv(t.TempDir(), cfg, zaptest.NewLogger(t))
	t.Cleanup(env.Close)
	return env
}

// runCLI runs the app with args, feeding stdin when non-empty, and returns
// what the command wrote to stdout.
func runCLI(t *testing.T, env *appEnv, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(env)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	oldStdin := os.Stdin
	if stdin != "" {
		stdinR, stdinW, _ := os.Pipe()
		os.Stdin = stdinR
		go func() {
			_, _ = stdinW.WriteString(stdin)
			stdinW.Close()
		}()
	}

	err := app.Run(append([]string{"quill"}, args...))

	os.Stdin = oldStdin
	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

func mustRun(t *testing.T, env *appEnv, stdin string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, env, stdin, args...)
	if err != nil {
		t.Fatalf("quill %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func unmarshalOut[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return v
}

// TestParseTags tests the parseTags helper function.
func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single tag", input: "foo", expected: []string{"foo"}},
		{name: "multiple tags", input: "foo,bar,baz", expected: []string{"foo", "bar", "baz"}},
		{name: "tags with spaces", input: " foo , bar , baz ", expected: []string{"foo", "bar", "baz"}},
		{name: "empty parts skipped", input: "foo,,bar,", expected: []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTags(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseTags(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseTags(%q)[%d] = %q, want %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"name=Ana", "level=B1=upper", " x =y"})
	if err != nil {
		t.Fatalf("parseVars() error = %v", err)
	}
	if vars["name"] != "Ana" || vars["level"] != "B1=upper" || vars["x"] != "y" {
		t.Errorf("parseVars() = %v", vars)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Errorf("parseVars(%q) expected error", bad)
		}
	}
}

// TestCLILifecycle covers create, save, history, snapshot, diff and restore.
func TestCLILifecycle(t *testing.T) {
	env := setupTestEnv(t)

	created := unmarshalOut[ops.CreateOutput](t, mustRun(t, env, "line one\n", "create", "--label=Intro", "--tags=30, A1 (Beginner)", "intro.txt"))
	if created.Record.Label != "Intro" {
		t.Errorf("Label = %q, want Intro", created.Record.Label)
	}
	if len(created.Record.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 tags", created.Record.Tags)
	}

	if got := mustRun(t, env, "", "show", "--raw", "intro.txt"); got != "line one\n" {
		t.Errorf("show --raw = %q, want %q", got, "line one\n")
	}

	saved := unmarshalOut[ops.SaveOutput](t, mustRun(t, env, "line one\nline two\n", "save", "intro.txt"))
	if saved.Created || saved.Snapshot == nil {
		t.Fatalf("save = %+v, want update with snapshot", saved)
	}
	snap := saved.Snapshot.SnapshotID

	hist := unmarshalOut[ops.HistoryOutput](t, mustRun(t, env, "", "history", "intro.txt"))
	if len(hist.History) != 1 || hist.History[0].SnapshotID != snap {
		t.Errorf("History = %+v, want [%s]", hist.History, snap)
	}

	if got := mustRun(t, env, "", "snapshot", "--raw", snap); got != "line one\n" {
		t.Errorf("snapshot --raw = %q", got)
	}

	pretty := mustRun(t, env, "", "diff", "--pretty", "intro.txt", snap)
	if !strings.Contains(pretty, "+ line two") {
		t.Errorf("diff --pretty = %q, want + line two", pretty)
	}

	restored := unmarshalOut[ops.RestoreOutput](t, mustRun(t, env, "", "restore", "intro.txt", snap))
	if restored.RestoredFrom != snap {
		t.Errorf("RestoredFrom = %q, want %q", restored.RestoredFrom, snap)
	}
	if got := mustRun(t, env, "", "show", "--raw", "intro.txt"); got != "line one\n" {
		t.Errorf("content after restore = %q", got)
	}

	meta := unmarshalOut[ops.ReadMetadataOutput](t, mustRun(t, env, "", "meta", "intro.txt"))
	if len(meta.Record.History) != 2 {
		t.Errorf("History len = %d, want 2", len(meta.Record.History))
	}

	del := unmarshalOut[ops.DeleteOutput](t, mustRun(t, env, "", "delete", "intro.txt"))
	if !del.Deleted {
		t.Error("Deleted = false")
	}
}

func TestCLICreateFromFile(t *testing.T) {
	env := setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(path, []byte("  keep surrounding space  \n"), 0600); err != nil {
		t.Fatal(err)
	}

	mustRun(t, env, "", "create", "--file", path, "spaced.txt")
	if got := mustRun(t, env, "", "show", "--raw", "spaced.txt"); got != "  keep surrounding space  \n" {
		t.Errorf("content = %q, want stored byte-for-byte", got)
	}
}

func TestCLITags(t *testing.T) {
	env := setupTestEnv(t)
	mustRun(t, env, "x", "create", "--tags=45,warmup", "t.txt")

	out := unmarshalOut[ops.UpdateTagsOutput](t, mustRun(t, env, "", "tags", "--select=Duration (Minutes)=60", "t.txt"))
	if strings.Join(out.Tags, ",") != "warmup,60" {
		t.Errorf("Tags = %v, want [warmup 60]", out.Tags)
	}

	out = unmarshalOut[ops.UpdateTagsOutput](t, mustRun(t, env, "", "tags", "--set=a,b", "t.txt"))
	if strings.Join(out.Tags, ",") != "a,b" {
		t.Errorf("Tags = %v, want [a b]", out.Tags)
	}

	if _, err := runCLI(t, env, "", "tags", "t.txt"); err == nil {
		t.Error("expected error without --set or --select")
	}
	if _, err := runCLI(t, env, "", "tags", "--select=Nope=1", "t.txt"); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestCLIListAndRender(t *testing.T) {
	env := setupTestEnv(t)
	mustRun(t, env, "Hi {{name}}", "create", "prompt1_a.txt")
	mustRun(t, env, "Bye", "create", "--component=call2", "b.txt")

	list := unmarshalOut[ops.ListOutput](t, mustRun(t, env, "", "list", "--query=prompt1"))
	if list.Total != 1 {
		t.Errorf("Total = %d, want 1", list.Total)
	}

	grouped := unmarshalOut[ops.ListGroupedOutput](t, mustRun(t, env, "", "list", "--grouped"))
	if grouped.Total != 2 {
		t.Errorf("Total = %d, want 2", grouped.Total)
	}

	if got := mustRun(t, env, "", "render", "--raw", "--var", "name=Ana", "prompt1_a.txt"); got != "Hi Ana" {
		t.Errorf("render = %q, want Hi Ana", got)
	}
	if _, err := runCLI(t, env, "", "render", "--strict", "prompt1_a.txt"); err == nil {
		t.Error("expected strict render error")
	}
}

func TestCLIMigrate(t *testing.T) {
	env := setupTestEnv(t)
	promptsDir := filepath.Join(env.baseDir, ops.PromptsDir)
	if err := os.MkdirAll(promptsDir, 0700); err != nil {
		t.Fatal(err)
	}
	legacy := `[{"filename":"a.txt","label":"A","component":"call1","tags":["x"],"history":[]}]`
	if err := os.WriteFile(filepath.Join(promptsDir, index.FileName), []byte(legacy), 0600); err != nil {
		t.Fatal(err)
	}

	res := unmarshalOut[index.MigrateResult](t, mustRun(t, env, "", "migrate"))
	if !res.Migrated || res.Entries != 1 {
		t.Errorf("migrate = %+v, want 1 entry migrated", res)
	}

	meta := unmarshalOut[ops.ReadMetadataOutput](t, mustRun(t, env, "", "meta", "a.txt"))
	if meta.Record.Label != "A" {
		t.Errorf("Label = %q, want A", meta.Record.Label)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"show not found", []string{"show", "missing.txt"}},
		{"show bad id", []string{"show", "../etc.txt"}},
		{"show missing arg", []string{"show"}},
		{"create without content", []string{"create", "a.txt"}},
		{"restore missing snapshot arg", []string{"restore", "a.txt"}},
		{"snapshot not found", []string{"snapshot", "a_v01J0000000000000000000000.txt"}},
		{"render bad var", []string{"render", "--var", "oops", "a.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// cli.Exit writes to stderr, so just verify the error is returned
			if _, err := runCLI(t, env, "", tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRunEditLoop(t *testing.T) {
	env := setupTestEnv(t)
	mustRun(t, env, "first", "create", "e.txt")
	repo, err := env.Repo()
	if err != nil {
		t.Fatal(err)
	}

	s := session.New(session.RepositoryBackend{Repo: repo},
		session.WithAutosaveDelay(time.Hour),
		session.WithTaxonomy(repo.Taxonomy()),
		session.WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()
	if err := s.Open(ctx, "e.txt"); err != nil {
		t.Fatal(err)
	}

	snapshot := func(ctx context.Context, id string) (string, error) {
		out, err := repo.Snapshot(ctx, ops.SnapshotInput{SnapshotID: id})
		if err != nil {
			return "", err
		}
		return out.Content, nil
	}

	script := strings.Join([]string{
		":set hello\\nworld",
		":append third",
		":undo",
		":show",
		":select Duration (Minutes)=90",
		":tag custom",
		":tags",
		":bogus",
		":save",
		":state",
		":quit",
	}, "\n")

	var out bytes.Buffer
	if err := runEditLoop(ctx, s, snapshot, strings.NewReader(script), &out); err != nil {
		t.Fatalf("runEditLoop() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"hello\nworld\n", "90, custom", `unknown command ":bogus"`, "loaded"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	content, err := repo.ReadContent(ctx, ops.ReadContentInput{ID: "e.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if content.Content != "hello\nworld" {
		t.Errorf("saved content = %q, want %q", content.Content, "hello\nworld")
	}
	if s.State() != session.StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}
}

func TestRunEditLoop_QuitReportsFailedSave(t *testing.T) {
	env := setupTestEnv(t)
	mustRun(t, env, "first", "create", "e.txt")
	repo, err := env.Repo()
	if err != nil {
		t.Fatal(err)
	}
	repo.SetMinIndexEntries(4)

	s := session.New(session.RepositoryBackend{Repo: repo},
		session.WithAutosaveDelay(time.Hour),
		session.WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()
	if err := s.Open(ctx, "e.txt"); err != nil {
		t.Fatal(err)
	}

	script := strings.Join([]string{
		":set changed",
		":quit",
		":state",
		":discard",
		":set again",
	}, "\n")

	var out bytes.Buffer
	if err := runEditLoop(ctx, s, nil, strings.NewReader(script), &out); err != nil {
		t.Fatalf("runEditLoop() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"[TOO_FEW_ENTRIES]", "unsaved changes", "dirty"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, session.ErrNotOpen.Error()) {
		t.Errorf("loop kept reading after :discard:\n%s", got)
	}
	if s.State() != session.StateClosed {
		t.Errorf("State() = %v, want closed", s.State())
	}

	content, err := repo.ReadContent(ctx, ops.ReadContentInput{ID: "e.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if content.Content != "first" {
		t.Errorf("content = %q, want first", content.Content)
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"quill"}, expected: false},
		{name: "serve command", args: []string{"quill", "serve"}, expected: true},
		{name: "show command", args: []string{"quill", "show"}, expected: true},
		{name: "mcp command", args: []string{"quill", "mcp"}, expected: true},
		{name: "help flag", args: []string{"quill", "--help"}, expected: true},
		{name: "version flag", args: []string{"quill", "--version"}, expected: true},
		{name: "short help flag", args: []string{"quill", "-h"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"quill", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("isCLIMode() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"quill"}, expected: false},
		{name: "help flag", args: []string{"quill", "--help"}, expected: true},
		{name: "short version flag", args: []string{"quill", "-v"}, expected: true},
		{name: "help subcommand", args: []string{"quill", "help"}, expected: true},
		{name: "show command is not help", args: []string{"quill", "show"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("isHelpOrVersion() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestResolveBaseDir(t *testing.T) {
	t.Setenv(config.EnvDir, "/tmp/quill-test")
	dir, err := resolveBaseDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/quill-test" {
		t.Errorf("resolveBaseDir() = %q, want /tmp/quill-test", dir)
	}
}
