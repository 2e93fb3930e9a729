package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/anglenexus/nexus/internal/config"
	agentHandler "github.com/anglenexus/nexus/internal/handler/agent"
	"github.com/anglenexus/nexus/internal/handler/chat"
	"github.com/anglenexus/nexus/internal/handler/stream"
	middlewarePkg "github.com/anglenexus/nexus/internal/middleware"
	aiService "github.com/anglenexus/nexus/internal/service/ai"
	"github.com/anglenexus/nexus/pkg/utils"
)

// Version is reported by the health endpoints.
var Version = "dev"

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, aiSvc *aiService.Service, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.CORSOrigins))

	agents := agentHandler.New(aiSvc.Agents())
	chatHandler := chat.New(aiSvc, cfg.Models)
	streamHandler := stream.New(aiSvc, cfg.Models)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Legacy single entry point; routes on a "/<agent>" token in the message.
	chatHandler.RegisterLegacyRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{
				"status":  "healthy",
				"service": "AngleNexus API",
				"version": Version,
			})
		})
		api.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":        "operational",
				"service":       "AngleNexus API",
				"version":       Version,
				"models":        cfg.Models.Allowed,
				"default_model": cfg.Models.Default,
				"model_backend": aiSvc.ModelEnabled(),
			})
		})

		agents.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
