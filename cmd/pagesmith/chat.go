package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session; each line is sent as a message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, input, err := a.newHandler(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s. Type a request, Ctrl-D to quit.\n", a.cfg.ServerURL)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for scanner.Scan() {
				input.Set(scanner.Text())
				// Failures are logged by the handler; the session carries on.
				if err := h.Submit(ctx); err != nil && errors.Is(err, context.Canceled) {
					return nil
				}
			}
			return scanner.Err()
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send one message and print the link to the generated files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, input, err := a.newHandler(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				return errors.New("message must not be blank")
			}
			input.Set(msg)
			return h.Submit(cmd.Context())
		},
	}
}
