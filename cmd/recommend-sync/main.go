package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/Checker-Finance/recommend-go/internal/channelsync"
	"github.com/Checker-Finance/recommend-go/internal/publisher"
	internalsecrets "github.com/Checker-Finance/recommend-go/internal/secrets"
	"github.com/Checker-Finance/recommend-go/internal/server"
	"github.com/Checker-Finance/recommend-go/internal/store"
	"github.com/Checker-Finance/recommend-go/pkg/config"
	"github.com/Checker-Finance/recommend-go/pkg/logger"
	"github.com/Checker-Finance/recommend-go/pkg/recommend"
	"github.com/Checker-Finance/recommend-go/pkg/secrets"
	"github.com/Checker-Finance/recommend-go/pkg/tokens"
	"github.com/Checker-Finance/recommend-go/pkg/transport"
	"github.com/Checker-Finance/recommend-go/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()

	if err := cfg.Validate(); err != nil {
		logg.Fatalw("invalid configuration", "error", err)
	}
	logg.Infof("starting [%s]...", cfg.ServiceName)

	// --- Login credentials ---
	stopCleaner := make(chan struct{})
	var creds secrets.CredentialsSource = secrets.Static{Username: cfg.Username, Password: cfg.Password}
	if cfg.CredentialsSource == config.CredentialsFromAWS {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		credCache := secrets.NewCache[secrets.Credentials](cfg.CacheTTL)
		go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

		resolver := internalsecrets.NewResolver(logg.Desugar(), cfg.Env, cfg.ServiceName,
			awsProvider, credCache, secrets.ParseCredentials)
		creds = internalsecrets.AccountCredentials{Resolver: resolver, Account: cfg.Account}
		logg.Infow("credentials from AWS Secrets Manager", "secret", resolver.SecretName(cfg.Account))
	}

	// --- Shared token cache + sync watermark (Redis) ---
	transportOpts := []transport.Option{transport.WithLogger(logg.Desugar())}
	var checks []server.HealthCheck
	var rdb *redis.Client
	var syncState channelsync.WatermarkStore
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB, Password: cfg.RedisPass})
		transportOpts = append(transportOpts, transport.WithTokenCache(tokens.NewRedisCache(rdb, "", logg.Desugar())))
		state := store.NewSyncState(rdb)
		syncState = state
		checks = append(checks, server.HealthCheck{Name: "redis", Check: state.HealthCheck})
	} else {
		logg.Warn("REDIS_ADDR not configured; tokens and sync watermark are process-local")
	}

	// --- Recommendation API client ---
	tr, err := transport.New(transport.Config{
		BaseURL:           cfg.BaseURL,
		Account:           cfg.Account,
		Timeout:           cfg.HTTPTimeout,
		RetryMax:          cfg.RetryMax,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		RefreshWindow:     cfg.RefreshWindow,
		BreakerFailures:   uint32(cfg.BreakerFailures),
		BreakerTimeout:    cfg.BreakerTimeout,
	}, creds, transportOpts...)
	if err != nil {
		logg.Fatalw("failed to init transport", "error", err)
	}
	client := recommend.New(tr, logg.Desugar())
	if err := client.Login(ctx); err != nil {
		logg.Fatalw("login to recommendation API failed", "error", err)
	}

	// --- Sinks ---
	var sinks []channelsync.Sink

	var pub *publisher.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = publisher.New(nc, cfg.ChannelSubject, cfg.ServiceName, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
		sinks = append(sinks, pub)
		checks = append(checks, server.HealthCheck{Name: "nats", Check: pub.HealthCheck})
	}

	var closePG func()
	if cfg.DatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := store.Connect(ctx, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		})
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		closePG = pool.Close
		channels := store.NewChannelStore(pool, logg.Desugar())
		sinks = append(sinks, channels)
		checks = append(checks, server.HealthCheck{Name: "postgres", Check: channels.HealthCheck})
	}
	if len(sinks) == 0 {
		logg.Warn("no sinks configured (NATS_URL, DATABASE_URL); channels are fetched but not stored")
	}

	// --- Channel sync ---
	syncer := channelsync.New(channelsync.Config{
		Account:   cfg.Account,
		Interval:  cfg.SyncInterval,
		PageSize:  cfg.PageSize,
		MaxFailed: cfg.MaxFailed,
	}, client.ChannelEmail, syncState, logg.Desugar(), sinks...)
	go syncer.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server.RegisterRoutes(app, syncer, checks...)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow(fmt.Sprintf("[%s] running", cfg.ServiceName),
		"env", cfg.Env,
		"account", cfg.Account,
		"sync_interval", cfg.SyncInterval,
		"sinks", len(sinks))

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	close(stopCleaner)
	syncer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if pub != nil {
		pub.Close()
	}
	if closePG != nil {
		closePG()
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logg.Warnw("redis.close_failed", "error", err)
		}
	}
}
