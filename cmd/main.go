package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"pondwatch/internal/api"
	"pondwatch/internal/auth"
	"pondwatch/internal/cache"
	"pondwatch/internal/config"
	"pondwatch/internal/metrics"
	"pondwatch/internal/push"
	"pondwatch/internal/sensors"
	"pondwatch/internal/storage"
	"pondwatch/internal/subscriber"
	"pondwatch/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})

	users := storage.NewUserStore(conf.StorageDir)
	ponds := storage.NewPondStore(conf.StorageDir)
	readings := storage.NewReadingStore(conf.StorageDir)
	subscriptions := storage.NewSubscriptionStore(conf.StorageDir)

	manager := ws.NewManager(logger, ws.Options{
		HeartbeatInterval: conf.HeartbeatInterval,
		CleanupInterval:   conf.CleanupInterval,
		MaxIdle:           conf.MaxIdle,
	})
	go manager.RunCleanup(ctx)

	pushService, err := push.New(logger, subscriptions, conf.VAPIDPublicKey, conf.VAPIDPrivateKey, conf.VAPIDSubscriber)
	if err != nil {
		return err
	}

	readingCache := cache.NewRedisReadingCache(redisClient, conf.CacheTTL)
	sensorService := sensors.NewService(logger, readings, ponds, readingCache, manager, pushService)

	sub := subscriber.NewSubscriber(logger, redisClient, conf.RedisAlertsChannel, manager)
	go func() {
		if err := sub.Start(ctx); err != nil {
			logger.Error("subscriber stopped with error", "error", err)
		}
	}()

	server := api.NewServer(conf, logger, api.Deps{
		Manager:  manager,
		Auth:     auth.New(conf.JWTSecret, conf.AccessTokenTTL),
		Users:    users,
		Ponds:    ponds,
		Readings: readings,
		Sensors:  sensorService,
		Push:     pushService,
		Cache:    readingCache,
		Metrics:  metrics.New(manager.Stats),
	})
	if err := server.Start(ctx); err != nil {
		return err
	}

	return nil
}
