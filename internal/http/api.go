package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type API struct {
	Logger  *slog.Logger
	Health  HealthChecker
	Service domain.BlockService
}

func NewAPI(logger *slog.Logger, health HealthChecker, service domain.BlockService) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		Logger:  logger,
		Health:  health,
		Service: service,
	}
}

func (a *API) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	mux.HandleFunc("GET /api/v1/countries", a.handleListCountries)
	mux.HandleFunc("GET /api/v1/countries/{code}/blocks/{family}", a.handleListBlocks)
	mux.HandleFunc("GET /api/v1/lookup/{ip}", a.handleLookup)

	return mux
}
