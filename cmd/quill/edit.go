package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/quill/internal/client"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/prompt"
	"github.com/hpungsan/quill/internal/session"
)

const editHelp = `commands:
  :show                 print the buffer
  :set <text>           replace the buffer (\n for newlines)
  :append <text>        append a line to the buffer
  :undo | :redo
  :save                 save now
  :tags                 print tags
  :select Group=Option  select one option of an exclusive group
  :clear Group          clear a group's selection
  :tag <tag>            add a custom tag
  :untag <tag>          remove a tag
  :restore <snapshot>   load a snapshot into the buffer
  :state                print the session state
  :quit                 save and exit
  :discard              exit without saving
`

// snapshotFunc reads archived snapshot content.
type snapshotFunc func(ctx context.Context, snapshotID string) (string, error)

// editCmd creates the edit command.
func editCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a prompt interactively with autosave",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "remote", Usage: "Edit through a quill server at this base URL"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"QUILL_ADMIN_SECRET"}, Usage: "Admin secret for --remote"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}

			var (
				backend  session.Backend
				snapshot snapshotFunc
				taxonomy *prompt.Taxonomy
			)
			if remote := c.String("remote"); remote != "" {
				cl := client.New(remote, c.String("secret"))
				tax, err := cl.TagGroups(c.Context)
				if err != nil {
					return outputError(err)
				}
				backend, taxonomy = cl, tax
				snapshot = func(ctx context.Context, id string) (string, error) {
					out, err := cl.Snapshot(ctx, id)
					if err != nil {
						return "", err
					}
					return out.Content, nil
				}
			} else {
				repo, err := env.Repo()
				if err != nil {
					return outputError(err)
				}
				backend, taxonomy = session.RepositoryBackend{Repo: repo}, repo.Taxonomy()
				snapshot = func(ctx context.Context, id string) (string, error) {
					out, err := repo.Snapshot(ctx, ops.SnapshotInput{SnapshotID: id})
					if err != nil {
						return "", err
					}
					return out.Content, nil
				}
			}

			s := session.New(backend,
				session.WithAutosaveDelay(env.cfg.AutosaveDelay()),
				session.WithTaxonomy(taxonomy),
				session.WithLogger(env.logger),
			)
			if err := s.Open(c.Context, c.Args().First()); err != nil {
				return outputError(err)
			}

			done := make(chan struct{})
			go printNotices(s, os.Stderr, done)
			err := runEditLoop(c.Context, s, snapshot, os.Stdin, os.Stdout)
			close(done)
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// printNotices writes session notices until done is closed.
func printNotices(s *session.Session, w io.Writer, done <-chan struct{}) {
	for {
		select {
		case n := <-s.Notices():
			switch n.Kind {
			case session.NoticeSaved:
				fmt.Fprintf(w, "saved %s\n", n.ID)
			case session.NoticeTagsSaved:
				fmt.Fprintf(w, "tags saved %s\n", n.ID)
			case session.NoticeSaveFailed, session.NoticeTagsFailed:
				fmt.Fprintf(w, "save failed [%s] %s\n", n.Code, n.Message)
			}
		case <-done:
			return
		}
	}
}

// runEditLoop reads commands from in until :quit, :discard or EOF. :quit
// and EOF close the session, saving any pending edits; a :quit whose save
// fails keeps the loop running.
func runEditLoop(ctx context.Context, s *session.Session, snapshot snapshotFunc, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxStdinBytes)

	for scanner.Scan() {
		line := scanner.Text()
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch cmd {
		case "":
			continue
		case ":quit", ":q":
			if err = s.Close(ctx); err == nil {
				return nil
			}
			fmt.Fprintln(out, formatError(err))
			fmt.Fprintln(out, "unsaved changes; :save to retry or :discard to quit without saving")
			continue
		case ":discard":
			return s.Discard(ctx)
		case ":help", ":h":
			fmt.Fprint(out, editHelp)
		case ":show":
			fmt.Fprintln(out, s.Buffer())
		case ":set":
			err = s.Edit(strings.ReplaceAll(arg, `\n`, "\n"))
		case ":append":
			buf := s.Buffer()
			if buf != "" && !strings.HasSuffix(buf, "\n") {
				buf += "\n"
			}
			err = s.Edit(buf + arg)
		case ":undo":
			var ok bool
			if ok, err = s.Undo(); err == nil && !ok {
				fmt.Fprintln(out, "nothing to undo")
			}
		case ":redo":
			var ok bool
			if ok, err = s.Redo(); err == nil && !ok {
				fmt.Fprintln(out, "nothing to redo")
			}
		case ":save":
			err = s.Flush(ctx)
		case ":tags":
			fmt.Fprintln(out, strings.Join(s.Tags(), ", "))
		case ":select":
			group, option, ok := strings.Cut(arg, "=")
			if !ok {
				err = errors.NewInvalidRequest(":select needs Group=Option")
				break
			}
			err = s.SelectTag(ctx, strings.TrimSpace(group), strings.TrimSpace(option))
		case ":clear":
			err = s.ClearGroup(ctx, arg)
		case ":tag":
			err = s.AddCustomTag(ctx, arg)
		case ":untag":
			err = s.RemoveCustomTag(ctx, arg)
		case ":restore":
			var content string
			if content, err = snapshot(ctx, arg); err == nil {
				err = s.RestoreSnapshot(content)
			}
		case ":state":
			fmt.Fprintln(out, s.State())
		default:
			fmt.Fprintf(out, "unknown command %q (:help for commands)\n", cmd)
		}
		if err != nil {
			fmt.Fprintln(out, formatError(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.NewIOFailure("read commands", err)
	}
	return s.Close(ctx)
}

func formatError(err error) string {
	if qErr, ok := err.(*errors.QuillError); ok {
		return fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message)
	}
	return err.Error()
}
