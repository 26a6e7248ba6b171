package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"
	"github.com/monetlink/monetlink/internal/config"
	"github.com/monetlink/monetlink/internal/database/postgres"
	"github.com/monetlink/monetlink/internal/ratelimit"
	"github.com/monetlink/monetlink/internal/service"
	"github.com/monetlink/monetlink/internal/shortener"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/monetlink/monetlink/internal/api/http"
	pkgpostgres "github.com/monetlink/monetlink/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	// Secrets may come from a local .env file in development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("monetlink", httplog.Options{
		LogLevel: cfg.SlogLevel(),
		JSON:     cfg.Env == config.EnvProd,
		Concise:  cfg.Env != config.EnvProd,
	})

	if err := pkgpostgres.RunMigrations(cfg.MigrationsPath, cfg.Postgres.DSN()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	repo := postgres.NewRepository(db)
	limiter := ratelimit.New(cfg.Limits.RatePerMinute)

	client := shortener.New(shortener.Config{
		BaseURL:      cfg.Shortener.BaseURL,
		APIKey:       cfg.Shortener.APIKey,
		APIPath:      cfg.Shortener.APIPath,
		Timeout:      cfg.Shortener.Timeout,
		MaxRetryTime: cfg.Shortener.MaxRetryTime,
	})

	pipeline := service.NewPipeline(logger.Logger, repo, limiter, client, service.Policy{
		AllowedUserIDs:   cfg.Policy.AllowedUserIDs,
		WhitelistDomains: cfg.Policy.WhitelistDomains,
		BlacklistDomains: cfg.Policy.BlacklistDomains,
		MaxBatch:         cfg.Limits.MaxBatch,
	})

	r := myhttp.NewRouter(logger, pipeline)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error
		if cfg.HTTPServer.CertFile != "" && cfg.HTTPServer.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
