// Package app wires the Waybill auth server runtime: config, logging,
// database and cache access, HTTP routes, metrics, and the expiry sweeper.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"waybill/cmd/identity"
	authapi "waybill/cmd/internal/auth/api"
	"waybill/cmd/internal/auth/csrf"
	"waybill/cmd/internal/auth/mfa"
	"waybill/cmd/internal/auth/oauth"
	"waybill/cmd/internal/auth/reset"
	"waybill/cmd/internal/auth/session"
)

// App owns the HTTP server wiring and the background sweeper.
type App struct {
	cfg Config
	log Logger

	pool    *pgxpool.Pool
	metrics *Metrics
	auth    *authapi.Handler
	sweeper *Sweeper
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	// Sessions are database rows, not process memory; there is no degraded
	// in-memory mode for the auth server.
	if cfg.DatabaseURL == "" {
		return nil, errors.New("WAYBILL_DATABASE_URL is required")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("db.enabled.postgres_store")

	app, err := build(cfg, log, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

func build(cfg Config, log Logger, pool *pgxpool.Pool) (*App, error) {
	ids, err := identity.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sessStore, err := session.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}
	sessions := session.NewService(sessCfg, sessStore, log)

	resetCfg, err := reset.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	resetStore, err := reset.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()

	// TODO: replace LogMailer with an SMTP-backed mailer once the delivery
	// service is provisioned.
	resets := reset.NewService(resetCfg, resetStore, ids, authapi.LogMailer{
		Log:     log,
		URLBase: authCfg.ResetURLBase,
	}, log)

	ttl, err := newTTLStore(cfg, log)
	if err != nil {
		return nil, err
	}

	csrfCfg, err := csrf.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	mfaCfg, err := mfa.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	oauthCfg, err := oauth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var metrics *Metrics
	var authMetrics *authapi.Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
		authMetrics = metrics.Auth
	}

	auth := authapi.NewHandler(authCfg, authapi.Deps{
		Identity: ids,
		Sessions: sessions,
		Resets:   resets,
		CSRF:     csrf.NewManager(csrfCfg, ttl, log),
		MFA:      mfa.NewService(mfaCfg, ttl, log),
		States:   oauth.NewStateManager(oauthCfg, ttl, log),
	},
		authapi.WithLogger(log),
		authapi.WithPool(pool),
		authapi.WithMetrics(authMetrics),
	)

	return &App{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		metrics: metrics,
		auth:    auth,
		sweeper: NewSweeper(log, sessCfg.SweepInterval, sessCfg.SweepInitialDelay, sessions, resets),
	}, nil
}

// Run starts the sweeper and the HTTP server, and blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.pool, a.metrics, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	a.sweeper.Start(sweepCtx)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}

	stopSweep()
	a.sweeper.Wait()

	a.pool.Close()
	a.log.Info("server.stopped")
	return runErr
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
