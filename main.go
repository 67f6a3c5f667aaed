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

	"github.com/gin-gonic/gin"
	"github.com/princinho/authgate/config"
	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/logging"
	"github.com/princinho/authgate/metrics"
	"github.com/princinho/authgate/routes"
	"github.com/princinho/authgate/services"
	"github.com/princinho/authgate/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("authgate stopped")
	}
}

func run() error {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log := logging.Component(logger, "main")
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(cfg, logging.Component(logger, "store"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		be.close(closeCtx)
	}()

	m := metrics.New()
	monitor := database.NewMonitor(be.pinger, database.MonitorConfig{
		BaseDelay:   cfg.ReconnectInterval,
		MaxDelay:    cfg.MaxReconnectDelay,
		MaxAttempts: cfg.MaxReconnectAttempts,
		Interval:    cfg.HealthCheckInterval,
		PingTimeout: cfg.StoreTimeout,
	}, logging.Component(logger, "monitor"))
	monitor.OnStateChange(func(s database.State) {
		m.ObserveStoreState(s)
		log.WithField("state", s.String()).Info("store state changed")
	})

	if err := monitor.Connect(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := be.prepare(ctx); err != nil {
		return fmt.Errorf("store setup: %w", err)
	}

	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	tokens, err := utils.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, cfg.TokenIssuer)
	if err != nil {
		return err
	}

	if cfg.SeedAdmin() {
		seedCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		_, err := utils.SeedAdminUser(seedCtx, be.users, hasher, utils.AdminSeed{
			Email:    cfg.AdminEmail,
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
		}, logging.Component(logger, "seed"))
		cancel()
		if err != nil {
			return err
		}
	}

	identity := services.NewIdentityService(be.users, hasher, tokens, cfg.StoreTimeout,
		logging.Component(logger, "identity"), services.WithObserver(m.ObserveIdentityOp))

	router := routes.NewRouter(routes.Dependencies{
		Identity:       identity,
		Tokens:         tokens,
		StoreStatus:    monitor,
		Metrics:        m,
		Log:            logging.Component(logger, "http"),
		AllowedOrigins: cfg.AllowedOrigins,
		Started:        started,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return monitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
