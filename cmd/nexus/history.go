package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/widget"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear stored transcripts",
	}

	var asJSON bool
	showCmd := &cobra.Command{
		Use:   "show [agent]",
		Short: "Print the stored transcript (weaver by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.persistingWidget(args)
			if err != nil {
				return err
			}

			messages := w.Transcript(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(messages)
			}
			if len(messages) == 0 {
				fmt.Fprintln(out, "no stored messages")
				return nil
			}
			for _, msg := range messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", msg.Timestamp.Local().Format("2006-01-02 15:04"), msg.Role, msg.Content)
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw stored JSON")

	clearCmd := &cobra.Command{
		Use:   "clear [agent]",
		Short: "Delete the stored transcript (weaver by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.persistingWidget(args)
			if err != nil {
				return err
			}
			w.Clear(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", widget.TranscriptKey(w.Agent().ID))
			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}

func (a *app) persistingWidget(args []string) (*widget.Widget, error) {
	id := agent.Weaver
	if len(args) == 1 {
		id = args[0]
	}
	w, err := a.widget(id)
	if err != nil {
		return nil, err
	}
	if !w.Agent().Persist {
		return nil, fmt.Errorf("agent %q keeps no transcript", id)
	}
	return w, nil
}
