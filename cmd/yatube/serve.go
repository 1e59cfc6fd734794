package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/yatube/internal/api/handler"
	"github.com/d60-Lab/yatube/internal/api/middleware"
	"github.com/d60-Lab/yatube/internal/api/router"
	"github.com/d60-Lab/yatube/internal/media"
	"github.com/d60-Lab/yatube/internal/render"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
	"github.com/d60-Lab/yatube/pkg/tracing"
)

func newServeCmd() *cobra.Command {
	var noMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), !noMigrate)
		},
	}
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip schema migration on start")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if migrate {
		if err := database.Migrate(a.db); err != nil {
			return err
		}
	}

	pageCache, closeCache, err := newPageCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	store := media.NewStore(cfg.Media.Root, cfg.Media.URLPrefix, cfg.Media.MaxUploadBytes)
	var renderer *render.Renderer
	if cfg.Server.TemplateDir != "" {
		renderer, err = render.NewFromDir(cfg.Server.TemplateDir, store.URL)
	} else {
		renderer, err = render.New(store.URL)
	}
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	gin.SetMode(cfg.Server.Mode)
	h := handler.New(handler.Options{
		LoginURL:     cfg.Auth.LoginURL,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Server.Mode == gin.ReleaseMode,
		TokenTTL:     cfg.Auth.TokenTTL,
		IndexTTL:     cfg.Cache.IndexTTL,
	}, a.postSvc, a.feedSvc, a.relSvc, a.authSvc, pageCache, store, renderer)

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	engine := router.Setup(h, a.authSvc, router.Options{
		LoginURL:    cfg.Auth.LoginURL,
		CookieName:  cfg.Auth.CookieName,
		MediaRoot:   cfg.Media.Root,
		MediaURL:    cfg.Media.URLPrefix,
		AdminToken:  cfg.Admin.Token,
		Tracing:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
