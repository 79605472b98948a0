package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/roomcraft/collab/api"
	"github.com/roomcraft/collab/internal/config"
	"github.com/roomcraft/collab/internal/slogging"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            slogging.ParseLogLevel(cfg.Logging.Level),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := slogging.Get()
	defer func() {
		_ = logger.Close()
	}()

	if cfg.Auth.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be configured")
	}

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := api.NewCollaborationHub(api.HubOptions{
		EventLogCapacity:     cfg.WebSocket.EventLogCapacity,
		ChatHistoryCapacity:  cfg.WebSocket.ChatHistoryCapacity,
		SendBufferSize:       cfg.WebSocket.SendBufferSize,
		MaxChatMessageLength: cfg.WebSocket.MaxChatMessageLength,
	}, prometheus.DefaultRegisterer)

	resolver := api.NewJWTIdentityResolver(cfg.Auth.JWT.Secret, cfg.Auth.JWT.SigningMethod)
	wsHandler := api.NewCollabSocketHandler(hub, resolver, cfg.WebSocket.ReadLimitBytes)
	adminHandlers := api.NewAdminHandlers(hub)

	r := gin.New()
	r.Use(slogging.Recoverer())
	r.Use(slogging.LoggerMiddleware())

	api.RegisterRoutes(r, wsHandler, adminHandlers)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       hub.RoomCount(),
			"connections": hub.ConnectionCount(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting collaboration server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		hub.StartReaper(gctx, cfg.WebSocket.SweepInterval(), cfg.WebSocket.InactivityTimeout())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down collaboration server")
		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
