package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anglenexus/nexus/internal/config"
)

func newAgentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the agent catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			agents, err := loadAgents(cfg, opts.agentsFile)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPATH\tPERSIST\tSTATUS")
			for _, a := range agents {
				status := "live"
				if a.Placeholder {
					status = "placeholder"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", a.ID, a.Name, a.Path, a.Persist, status)
			}
			return tw.Flush()
		},
	}
}
