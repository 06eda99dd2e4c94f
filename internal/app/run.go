package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Flarenzy/rirblocks/internal/aggregate"
	appdb "github.com/Flarenzy/rirblocks/internal/db"
	"github.com/Flarenzy/rirblocks/internal/delegated"
	"github.com/Flarenzy/rirblocks/internal/domain"
	"github.com/Flarenzy/rirblocks/internal/fetch"
	apihttp "github.com/Flarenzy/rirblocks/internal/http"
	"github.com/Flarenzy/rirblocks/internal/output"
)

const shutdownTimeout = 5 * time.Second

// Run performs one refresh, or serves the API and refreshes periodically
// when cfg.ServeAddr is set.
func Run(ctx context.Context, cfg Config) error {
	logger, err := NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	var cache fetch.Cache
	if cfg.RedisURL != "" {
		rc, err := fetch.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		cache = rc
	}

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Attempts = cfg.FetchAttempts
	fetchOpts.MaxInterval = cfg.FetchTimeout
	fetcher := fetch.NewClient(&http.Client{Timeout: cfg.FetchTimeout}, logger, cache, fetchOpts)

	repo, repoName, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var writers []domain.BlockWriter
	if cfg.OutputDir != "" {
		writers = append(writers, domain.NewLoggingBlockWriter(logger, "file", output.NewFileWriter(cfg.OutputDir, cfg.Format)))
	}
	writers = append(writers, domain.NewLoggingBlockWriter(logger, repoName, repo))

	refresher := &Refresher{
		Logger:     logger,
		Fetcher:    fetcher,
		Aggregator: domain.NewLoggingAggregator(logger, aggregate.New(logger, delegated.Parser{Reserved: cfg.Reserved})),
		Writers:    writers,
		Countries:  cfg.CountryCodes,
		Sources:    cfg.SourceURLs,
		Workers:    cfg.Workers,
	}

	if cfg.ServeAddr == "" {
		return refresher.Refresh(ctx)
	}

	listener, err := net.Listen("tcp", cfg.ServeAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ServeAddr, err)
	}

	if err := refresher.Refresh(ctx); err != nil {
		if !errors.Is(err, domain.ErrNoSources) {
			_ = listener.Close()
			return err
		}
		logger.ErrorContext(ctx, "initial refresh failed, serving stored blocks", "err", err.Error())
	}

	api := apihttp.NewAPI(logger, repo, domain.NewBlockService(repo))
	return Serve(ctx, logger, cfg, api.Router(), listener, refresher.Refresh)
}

func openRepository(ctx context.Context, cfg Config) (domain.BlockRepository, string, func(), error) {
	if cfg.DSN == "" {
		return appdb.NewMemoryRepository(), "memory", func() {}, nil
	}

	pool, err := appdb.NewPool(ctx, cfg.DSN)
	if err != nil {
		return nil, "", nil, err
	}
	if err := appdb.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, "", nil, err
	}
	return appdb.NewBlockRepository(pool), "postgres", pool.Close, nil
}

// Serve runs the HTTP server on listener and calls refresh every
// cfg.RefreshInterval until ctx is done, then shuts the server down.
func Serve(ctx context.Context, logger *slog.Logger, cfg Config, handler http.Handler, listener net.Listener, refresh func(context.Context) error) error {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving api", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorContext(ctx, "periodic refresh failed", "err", err.Error())
			}
		}
	}
}

// Refresher downloads every source once and hands the blocks of each
// country to all writers.
type Refresher struct {
	Logger     *slog.Logger
	Fetcher    domain.SourceFetcher
	Aggregator domain.CountryAggregator
	Writers    []domain.BlockWriter
	Countries  []string
	Sources    []string
	Workers    int
}

func (r *Refresher) Refresh(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.Logger.With("run_id", runID)

	sources := r.Fetcher.FetchAll(ctx, r.Sources)
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(sources) == 0 {
		return domain.ErrNoSources
	}
	logger.InfoContext(ctx, "sources fetched", "fetched", len(sources), "configured", len(r.Sources))

	var failedWrites atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Workers, 1))
	for _, country := range r.Countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks, _ := r.Aggregator.Aggregate(sources, country)
			blocks.RunID = runID
			for _, w := range r.Writers {
				if err := w.WriteCountry(gctx, blocks); err != nil {
					failedWrites.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.InfoContext(ctx, "refresh finished",
		"countries", len(r.Countries),
		"failed_writes", failedWrites.Load(),
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}
