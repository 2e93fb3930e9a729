package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <agent> <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(2),
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
			return w.Send(cmd.Context(), strings.Join(args[1:], " "))
		},
	}
}
