package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/anglenexus/nexus/internal/widget"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <agent>",
		Short: "Open an interactive chat with one agent",
		Long: "Open an interactive chat with one agent.\n\n" +
			"Commands: /clear wipes the transcript, /close and /open toggle the\n" +
			"panel, /quit exits. Ctrl-D also exits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.widget(args[0])
			if err != nil {
				return err
			}

			rl, err := readline.NewFromConfig(&readline.Config{
				Prompt:      w.Agent().Name + " › ",
				HistoryFile: historyFile(),
			})
			if err != nil {
				return errors.Wrap(err, "start line editor")
			}
			defer rl.Close()

			return runREPL(cmd.Context(), w, rl, cmd.OutOrStdout())
		},
	}
}

// lineReader is the part of the line editor the loop needs.
type lineReader interface {
	ReadLine() (string, error)
}

// runREPL drives w from lines until /quit, EOF or ctx is done.
func runREPL(ctx context.Context, w *widget.Widget, lines lineReader, out io.Writer) error {
	if !w.IsOpen() {
		w.Toggle(ctx)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := lines.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read input")
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			w.Clear(ctx)
			fmt.Fprintln(out, "transcript cleared")
			continue
		case "/open":
			if !w.IsOpen() {
				w.Toggle(ctx)
			}
			continue
		case "/close":
			if w.IsOpen() {
				w.Toggle(ctx)
			}
			continue
		}

		if !w.IsOpen() {
			fmt.Fprintln(out, "panel is closed, /open to continue")
			continue
		}
		// Failures are already rendered as an apology turn.
		_ = w.Send(ctx, line)
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "nexus")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "readline_history")
}
