package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/handler"
	"github.com/anglenexus/nexus/internal/logging"
	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/service/ai"
	"github.com/anglenexus/nexus/internal/service/chat"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	agents := agent.Seed()
	if cfg.Server.AgentsFile != "" {
		agents, err = agent.LoadFile(cfg.Server.AgentsFile, agents)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Server.AgentsFile).Msg("failed to load agent catalogue")
		}
	}
	agentStore := agent.NewMemoryStore(agents)
	chatService := chat.NewService()

	// Ark model is optional; without it only placeholder agents answer.
	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		m, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize chat model, continuing without model backend")
		} else {
			chatModel = m
			logger.Info().Str("model", cfg.AI.Model).Msg("chat model initialized")
		}
	} else {
		logger.Info().Msg("ark credentials not configured, model-backed agents will return 503")
	}

	aiService, err := ai.NewService(ctx, agentStore, chatService, chatModel,
		ai.WithWindow(cfg.Server.HistoryWindow),
		ai.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize agent service")
	}

	router := handler.NewRouter(cfg, aiService, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", cfg.Server.Addr).Int("agents", len(agents)).Msg("AngleNexus backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
