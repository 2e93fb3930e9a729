package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anglenexus/nexus/internal/client"
	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/logging"
	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/storage"
	"github.com/anglenexus/nexus/internal/widget"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	baseURL    string
	model      string
	session    string
	agentsFile string
	noMarkdown bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "nexus",
		Short:        "Talk to the AngleNexus agents from a terminal",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "api", "", "API base URL (default $NEXUS_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.model, "model", "", "model name sent with each message (default $NEXUS_MODEL_NAME)")
	cmd.PersistentFlags().StringVar(&opts.session, "session", "", "session id sent as X-Session-ID")
	cmd.PersistentFlags().StringVar(&opts.agentsFile, "agents", "", "YAML agent catalogue overriding the built-in one")
	cmd.PersistentFlags().BoolVar(&opts.noMarkdown, "plain", false, "print replies without markdown rendering")

	cmd.AddCommand(
		newChatCmd(opts),
		newSendCmd(opts),
		newHistoryCmd(opts),
		newAgentsCmd(opts),
	)
	return cmd
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg    *config.Config
	agents []agent.Agent
	kv     storage.Store
	panel  *widget.Panel
	logger zerolog.Logger
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.Client.BaseURL = opts.baseURL
	}
	if opts.model != "" {
		cfg.Client.ModelName = opts.model
	}
	if opts.session != "" {
		cfg.Client.SessionID = opts.session
	}
	if opts.noMarkdown {
		cfg.Client.Markdown = false
	}

	logger := logging.SetupWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	agents, err := loadAgents(cfg, opts.agentsFile)
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(cmd.Context(), storageOptions(cfg.Storage))
	if err != nil {
		return nil, err
	}

	sender := client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithSessionID(cfg.Client.SessionID),
	)

	out := cmd.OutOrStdout()
	interactive := isTerminal(out)
	panel := widget.NewPanel(agents, sender, kv, func(a agent.Agent) widget.Renderer {
		return widget.NewTerminalRenderer(out, a.Name,
			widget.WithMarkdown(cfg.Client.Markdown),
			widget.WithInteractive(interactive),
		)
	}, widget.WithModelName(cfg.Client.ModelName), widget.WithLogger(logger))

	return &app{cfg: cfg, agents: agents, kv: kv, panel: panel, logger: logger}, nil
}

func (a *app) Close() error {
	return a.kv.Close()
}

func (a *app) widget(id string) (*widget.Widget, error) {
	w, ok := a.panel.Widget(id)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", id)
	}
	return w, nil
}

func loadAgents(cfg *config.Config, override string) ([]agent.Agent, error) {
	path := override
	if path == "" {
		path = cfg.Server.AgentsFile
	}
	if path == "" {
		return agent.Seed(), nil
	}
	return agent.LoadFile(path, agent.Seed())
}

func storageOptions(cfg config.StorageConfig) storage.Options {
	return storage.Options{
		Driver:     cfg.Driver,
		SQLitePath: cfg.SQLitePath,
		Redis: storage.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		},
		QuotaBytes: cfg.QuotaBytes,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
