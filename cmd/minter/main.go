package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbuilders/wine-minter/internal/api"
	"github.com/openbuilders/wine-minter/internal/batcher"
	"github.com/openbuilders/wine-minter/internal/blockfrost"
	"github.com/openbuilders/wine-minter/internal/clock"
	"github.com/openbuilders/wine-minter/internal/env"
	"github.com/openbuilders/wine-minter/internal/events"
	"github.com/openbuilders/wine-minter/internal/health"
	"github.com/openbuilders/wine-minter/internal/history"
	"github.com/openbuilders/wine-minter/internal/iot"
	"github.com/openbuilders/wine-minter/internal/log"
	"github.com/openbuilders/wine-minter/internal/minting"
	"github.com/openbuilders/wine-minter/internal/mock"
	"github.com/openbuilders/wine-minter/internal/notifier"
	"github.com/openbuilders/wine-minter/internal/queue"
	"github.com/openbuilders/wine-minter/internal/repository/postgres"
	"github.com/openbuilders/wine-minter/internal/sender"
	"github.com/openbuilders/wine-minter/internal/tokenization"
	"github.com/openbuilders/wine-minter/internal/wineries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	network     = "mainnet"
	eventBuffer = 1024
)

func main() {
	logLevel := env.GetString("LOG_LEVEL", "INFO")
	log.Setup(logLevel)

	listenPort := env.GetInt("LISTEN_PORT", 8090)
	probesPort := env.GetInt("PROBES_PORT", 8081)
	metricsPort := env.GetInt("METRICS_PORT", 9091)
	rabbitURL := env.GetString("RABBIT_URL", "")
	redisURL := env.GetString("REDIS_URL", "")
	postgresURL := env.GetString("POSTGRES_URL",
		"postgres://postgres:dev@db:5432/postgres?connect_timeout=1")
	winerySource := env.GetString("WINERIES_SOURCE", wineries.SourceMock)
	wineriesURL := env.GetString("WINERIES_URL", "")
	seedMock := env.GetBool("WINERIES_SEED_MOCK", false)
	wineryLimit := env.GetInt("WINERY_LIMIT", minting.DefaultWineryLimit)
	mainEnabled := env.GetBool("MAIN_NETWORK_ENABLED", false)

	// create the context and register signals that could cause its cancellation
	// and graceful shutdown
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	instanceID := getInstanceID()
	clk := clock.New()
	tracker := history.New()
	broadcaster := events.NewBroadcaster()
	components := map[health.Component]health.Pinger{}

	errGroup, ctx := errgroup.WithContext(ctx)

	// Event sinks outlive the coordinator so that the completion event of a
	// run stopped by shutdown is still delivered.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("parse REDIS_URL", "error", err)
			return
		}

		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		components[health.ComponentRedis] = health.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		sink := events.NewAsync("redis", events.NewRedisPublisher(redisClient,
			env.GetString("REDIS_CHANNEL", events.DefaultChannel), time.Second), eventBuffer)
		broadcaster.Add(sink)
		errGroup.Go(func() error { return sink.Run(sinkCtx) })
	}

	if rabbitURL != "" {
		// Results go to the first queue; the rest are only declared.
		var queues []queue.QueueName
		for _, name := range env.GetList("RABBIT_QUEUES", []string{string(queue.QueueMintResults)}) {
			queues = append(queues, queue.QueueName(name))
		}
		if len(queues) == 0 {
			queues = []queue.QueueName{queue.QueueMintResults}
		}

		rabbit := queue.New(&queue.Config{
			URL:               rabbitURL,
			ReconnectInterval: 5 * time.Second,
			ConnectTimeout:    5 * time.Second,
			PublishTimeout:    3 * time.Second,
			Queues:            queues,
		})

		components[health.ComponentRabbit] = rabbit

		sink := events.NewAsync("rabbitmq", notifier.New(rabbit, queues[0]), eventBuffer)
		broadcaster.Add(sink)
		errGroup.Go(func() error { return rabbit.Start(sinkCtx) })
		errGroup.Go(func() error { return sink.Run(sinkCtx) })
	}

	var source wineries.Source

	switch winerySource {
	case wineries.SourcePostgres:
		slog.Info("Connecting to Postgres...")

		pg, err := pgxpool.New(ctx, postgresURL)
		if err != nil {
			slog.Error("connect to Postgres", "error", err)
			return
		}
		defer pg.Close()

		pgClient := postgres.New(pg, 5*time.Second)

		if err := pgClient.Ping(ctx); err != nil {
			slog.Error("check Postgres connection", "error", err)
			return
		}

		if err := pgClient.Migrate(ctx); err != nil {
			slog.Error("migrate catalogue schema", "error", err)
			return
		}

		if seedMock {
			err := pgClient.ImportWineries(ctx, wineries.MockDataset())
			if err != nil && !errors.Is(err, postgres.ErrDuplicateKeyValue) {
				slog.Error("seed catalogue", "error", err)
				return
			}
		}

		components[health.ComponentDB] = health.PingFunc(func(ctx context.Context) error {
			return pg.Ping(ctx)
		})
		source = pgClient

	case wineries.SourceHTTP:
		source = wineries.NewHTTPSource(wineriesURL, 10*time.Second)

	default:
		source = wineries.MockSource{}
	}

	catalogue := wineries.NewLoader(source)

	testRunner := batcher.New(
		&batcher.Config{ThrottleDelay: 500 * time.Millisecond},
		mock.New(mock.DefaultConfig(), clk, rand.New(rand.NewSource(time.Now().UnixNano()))),
		tracker,
		broadcaster,
		clk,
	)

	var (
		mainRunner minting.MainRunner
		assets     api.AssetSource
	)

	if mainEnabled {
		tokenAPI, err := tokenization.New(&tokenization.Config{
			URL: env.GetFirstString("", "TOKENIZATION_API_URL",
				"NEXT_PUBLIC_TOKENIZATION_API_URL"),
			Username: env.GetFirstString("", "TOKENIZATION_API_USERNAME",
				"NEXT_PUBLIC_TOKENIZATION_API_USERNAME"),
			Password: env.GetFirstString("", "TOKENIZATION_API_PASSWORD",
				"NEXT_PUBLIC_TOKENIZATION_API_PASSWORD"),
			Gateway: env.GetFirstString("https://ipfs.io", "IPFS_GATEWAY",
				"NEXT_PUBLIC_IPFS_GATEWAY"),
			Timeout:     env.GetDuration("TOKENIZATION_TIMEOUT", 60*time.Second),
			MintTimeout: env.GetDuration("TOKENIZATION_MINT_TIMEOUT", 30*time.Second),
			ProbeAsset:  env.GetString("TOKENIZATION_PROBE_ASSET", ""),
		})
		if err != nil {
			slog.Error("configure tokenization API", "error", err)
			return
		}

		chain, err := blockfrost.New(&blockfrost.Config{
			URL:     env.GetString("BLOCKFROST_URL", blockfrost.DefaultURL),
			APIKey:  env.GetFirstString("", "BLOCKFROST_API_KEY", "NEXT_PUBLIC_BLOCKFROST_API_KEY"),
			Timeout: 10 * time.Second,
		})
		if err != nil {
			slog.Error("configure Blockfrost", "error", err)
			return
		}

		var sensors sender.SnapshotSource
		if sensorsURL := env.GetFirstString("", "IOT_STORAGE_SENSORS_API_URL",
			"NEXT_PUBLIC_IOT_STORAGE_SENSORS_API_URL"); sensorsURL != "" {
			sensors = iot.New(sensorsURL, 10*time.Second)
		}

		components[health.ComponentTokenAPI] = health.PingFunc(tokenAPI.TestConnection)
		assets = tokenAPI

		mainRunner = sender.New(&sender.Config{
			Confirm: sender.ConfirmConfig{
				Interval:    sender.DefaultPollInterval,
				MaxAttempts: sender.DefaultMaxAttempts,
			},
		}, sender.Deps{
			Fetcher:  tokenization.NewImageFetcher(30 * time.Second),
			Uploader: tokenAPI,
			Minter:   tokenAPI,
			Checker:  chain,
			Sensors:  sensors,
			History:  tracker,
			Observer: broadcaster,
			Clock:    clk,
		})
	} else {
		slog.Warn("Main network minting is disabled, only test runs are accepted")
	}

	coordinator := minting.New(&minting.Config{
		WineryLimit: wineryLimit,
		Network:     network,
	}, catalogue, testRunner, mainRunner, tracker)

	healthChecker := health.NewChecker(&health.Config{
		CheckInterval: 30 * time.Second,
		CheckTimeout:  5 * time.Second,
		ID:            instanceID,
	}, components)

	server := api.NewServer(&api.Config{
		ListenAddr:      "",
		ListenPort:      listenPort,
		MetricsPort:     metricsPort,
		ProbesPort:      probesPort,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		ID:              instanceID,
	}, coordinator, tracker, assets, healthChecker)

	errGroup.Go(func() error {
		return healthChecker.Run(ctx)
	})

	errGroup.Go(func() error {
		defer stopSinks()
		return coordinator.Run(ctx)
	})

	errGroup.Go(func() error {
		err := server.Start(ctx)
		if err != nil {
			slog.Error("Server exited with an error", "error", err)
			return err
		}

		return nil
	})

	if err := errGroup.Wait(); err != nil {
		slog.Error("wine minter exited with an error", "error", err)
		os.Exit(1)
	}
}

func getInstanceID() string {
	instanceID := env.GetString("POD_NAME", "")

	if instanceID == "" {
		instanceID = uuid.NewString()[:8]
	}

	return instanceID
}
