// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appcli "github.com/siderolabs/go-app-signature/internal/cli"
	"github.com/siderolabs/go-app-signature/pkg/message"
	"github.com/siderolabs/go-app-signature/pkg/nonce"
	"github.com/siderolabs/go-app-signature/pkg/secret"
	"github.com/siderolabs/go-app-signature/pkg/server/middleware"
	"github.com/siderolabs/go-app-signature/pkg/signature"
)

const purgeInterval = time.Minute

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve an HTTP API which only accepts signed requests",
	Flags: []cli.Flag{
		appcli.ListenAddrFlag,
		appcli.NonceBackendFlag,
		appcli.ResolverFlag,
		appcli.CredentialsFileFlag,
		appcli.PassphraseFlag,
		appcli.RedisAddrFlag,
		appcli.RedisPasswordFlag,
		appcli.RedisDBFlag,
		appcli.PostgresDSNFlag,
		appcli.CacheTTLFlag,
		appcli.NotFoundTTLFlag,
		appcli.WindowFlag,
		appcli.NonceTTLFlag,
		appcli.DependencyTimeoutFlag,
		appcli.ShutdownTimeoutFlag,
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	cfg := appcli.NewServeConfigFromCLI(c)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := appcli.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB

	if cfg.UsesPostgres() {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		defer db.Close() //nolint:errcheck

		if err = db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)

	store, err := newNonceStore(ctx, eg, cfg, db, logger)
	if err != nil {
		return err
	}

	resolver, err := newResolver(ctx, cfg, db, logger)
	if err != nil {
		return err
	}

	defer resolver.Close() //nolint:errcheck

	metrics := signature.NewMetrics()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	verifier, err := signature.NewVerifier(resolver, store,
		signature.WithWindow(cfg.Window),
		signature.WithNonceTTL(cfg.NonceTTL),
		signature.WithDependencyTimeout(cfg.DependencyTimeout),
		signature.WithLogger(logger),
		signature.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(verifier, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", cfg.ListenAddr),
			zap.String("nonce_backend", cfg.NonceBackend),
			zap.String("resolver", cfg.Resolver),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")

		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func newNonceStore(ctx context.Context, eg *errgroup.Group, cfg *appcli.ServeConfig, db *sql.DB, logger *zap.Logger) (nonce.Store, error) {
	switch cfg.NonceBackend {
	case appcli.NonceBackendRedis:
		client, err := nonce.DialRedis(ctx, nonce.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}

		eg.Go(func() error {
			<-ctx.Done()

			return client.Close()
		})

		return nonce.NewRedisStore(client), nil
	case appcli.NonceBackendPostgres:
		store, err := nonce.NewPostgresStore(ctx, db)
		if err != nil {
			return nil, err
		}

		eg.Go(func() error {
			purgeNonces(ctx, store, logger)

			return nil
		})

		return store, nil
	default:
		return nonce.NewMemoryStore(), nil
	}
}

func purgeNonces(ctx context.Context, store *nonce.PostgresStore, logger *zap.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		purged, err := store.Purge(ctx)
		if err != nil {
			logger.Warn("failed to purge expired nonces", zap.Error(err))

			continue
		}

		logger.Debug("purged expired nonces", zap.Int64("count", purged))
	}
}

func newResolver(ctx context.Context, cfg *appcli.ServeConfig, db *sql.DB, logger *zap.Logger) (*secret.CachingResolver, error) {
	var upstream secret.Resolver

	switch cfg.Resolver {
	case appcli.ResolverPostgres:
		upstream = secret.NewPostgresResolver(db)
	default:
		path, err := secret.CredentialsPath(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to find credentials file: %w", err)
		}

		static, err := secret.LoadFile(path, []byte(cfg.Passphrase))
		if err != nil {
			return nil, err
		}

		logger.Info("loaded credentials", zap.String("path", path), zap.Int("apps", static.Len()))

		upstream = static
	}

	return secret.NewCachingResolver(ctx, upstream,
		secret.WithCacheTTL(cfg.CacheTTL),
		secret.WithNotFoundTTL(cfg.NotFoundTTL),
		secret.WithCacheLogger(logger),
	)
}

type secureDataResponse struct {
	AppID string          `json:"appId"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newRouter(verifier message.Verifier, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Verify(verifier, middleware.WithLogger(logger)))

		r.Post("/secure-data", handleSecureData)
	})

	return r
}

func handleSecureData(w http.ResponseWriter, r *http.Request) {
	appID, _ := middleware.AppIDFromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	resp := secureDataResponse{AppID: appID}

	if len(body) > 0 {
		if !json.Valid(body) {
			body, _ = json.Marshal(string(body)) //nolint:errcheck,errchkjson
		}

		resp.Data = body
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(resp) //nolint:errcheck,errchkjson
}
