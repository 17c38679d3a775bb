package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"infiya.app/relay/common/id"
	"infiya.app/relay/common/logger"
	"infiya.app/relay/common/otel"
	"infiya.app/relay/core/config"
	"infiya.app/relay/core/db"
	"infiya.app/relay/internal/http/middleware"
	httprouter "infiya.app/relay/internal/http/router"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/relay"
	"infiya.app/relay/internal/service"
	"infiya.app/relay/internal/stats"
	"infiya.app/relay/internal/store"
	"infiya.app/relay/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not set up yet
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "relay starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	streamsRedis, err := connectRedis(ctx, cfg.Streams.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to streams redis", "error", err)
		os.Exit(1)
	}
	defer streamsRedis.Close()

	memoryRedis, err := connectRedis(ctx, cfg.Memory.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to memory redis", "error", err)
		os.Exit(1)
	}
	defer memoryRedis.Close()
	slog.InfoContext(ctx, "redis connected", "stream_pattern", cfg.Streams.StreamPattern)

	registry := relay.NewRegistry(cfg.Relay.ChannelCapacity)
	enricher := stats.NewEnricher(memoryRedis, cfg.Memory.KeyPattern)

	services := service.NewServices(
		store.NewStores(database.Queries()),
		service.NewTxRunner(database),
		registry,
		pipeline.NewClient(cfg.Pipeline.URL, cfg.Pipeline.Timeout),
		cfg.Relay,
	)
	conversations := services.Conversations()

	supervisor := worker.NewSupervisor(
		worker.RedisLogFactory(streamsRedis, cfg.Streams, cfg.Relay),
		registry,
		enricher,
		conversations,
		worker.ConfigFrom(cfg.Relay),
	)
	chat := services.Chat(supervisor)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Dependencies{
		Chat:          chat,
		Conversations: conversations,
		Registry:      registry,
		Workflows:     supervisor,
		StreamsRedis:  streamsRedis,
	})
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)

	// Requests derive from gctx so open live streams end when shutdown starts.
	// No WriteTimeout: live streams stay open for the whole session.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		BaseContext:       func(net.Listener) context.Context { return gctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		}
		if err := chat.Drain(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "pipeline submissions still in flight", "error", err)
		}
		if err := supervisor.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "workflow consumers did not stop in time", "error", err)
		}
		if telemetry != nil {
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "relay stopped with error", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "shutdown complete")
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func setupRouter(cfg config.Config, deps httprouter.Dependencies) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.AllowOrigins, cfg.IsProduction()))

	httprouter.SetupRoutes(router, deps, httprouter.RouterConfig{
		IsProduction: cfg.IsProduction(),
		AllowOrigins: cfg.AllowOrigins,
		Heartbeat:    cfg.Relay.HeartbeatInterval,
		HistoryLimit: cfg.Relay.HistoryLimit,
		Streams:      cfg.Streams,
	})

	return router
}

const banner = `
██╗███╗   ██╗███████╗██╗██╗   ██╗ █████╗     ██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██║████╗  ██║██╔════╝██║╚██╗ ██╔╝██╔══██╗    ██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║██╔██╗ ██║█████╗  ██║ ╚████╔╝ ███████║    ██████╔╝█████╗  ██║     ███████║ ╚████╔╝ 
██║██║╚██╗██║██╔══╝  ██║  ╚██╔╝  ██╔══██║    ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝  
██║██║ ╚████║██║     ██║   ██║   ██║  ██║    ██║  ██║███████╗███████╗██║  ██║   ██║   
╚═╝╚═╝  ╚═══╝╚═╝     ╚═╝   ╚═╝   ╚═╝  ╚═╝    ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝   
`
