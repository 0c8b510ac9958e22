package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pagesmith/internal/chat"
	"pagesmith/internal/config"
	"pagesmith/internal/logging"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    config.Client
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "pagesmith",
		Short:         "Chat with the pagesmith server to generate web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file")
	flags.String("server-url", "", "pagesmith server URL (default http://localhost:8080)")
	flags.String("system-prompt", "", "system prompt for a new conversation")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	for key, flag := range map[string]string{
		"config":        "config",
		"server_url":    "server-url",
		"system_prompt": "system-prompt",
		"log_level":     "log-level",
		"log_format":    "log-format",
	} {
		cobra.CheckErr(a.v.BindPFlag(key, flags.Lookup(flag)))
	}

	root.AddCommand(newChatCmd(a), newSendCmd(a))
	return root
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.LoadClient(a.v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newHandler builds a chat handler writing to out. The returned input is the
// one the handler reads from.
func (a *app) newHandler(out io.Writer) (*chat.Handler, *chat.LineInput, error) {
	if a.logger == nil {
		return nil, nil, errors.New("pagesmith: not initialised")
	}
	transport, err := chat.NewHTTPTransport(a.cfg.ServerURL)
	if err != nil {
		return nil, nil, err
	}
	input := &chat.LineInput{}
	h, err := chat.NewHandler(
		chat.NewSession(a.cfg.SystemPrompt),
		input,
		chat.NewTerminalDisplay(out, a.cfg.ServerURL),
		transport,
		chat.WithLogger(a.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return h, input, nil
}
