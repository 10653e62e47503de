package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairchat/internal/config"
	"pairchat/internal/repository/blob"
	"pairchat/internal/repository/thread"
	"pairchat/internal/repository/user"
	"pairchat/internal/service/conversation"
	redisSvc "pairchat/internal/service/redis"
	"pairchat/internal/service/server"
	"pairchat/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := log.Init(cfg.LogLevel, cfg.LogDev); err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	opts := conversation.Options{
		OpTimeout:      cfg.OpTimeout,
		StorageRetries: cfg.StorageRetries,
	}

	var meta conversation.MetadataStore
	switch cfg.MetadataDriver {
	case "mongo":
		mongoDBClient, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer mongoDBClient.Disconnect(context.Background())

		db := mongoDBClient.Database(cfg.MongoDB)
		meta = thread.NewMongoRepo(db)
		opts.Directory = user.NewUserRepo(db)
	case "sqlite3", "postgres":
		repo, err := thread.NewSQLRepo(cfg.MetadataDriver, cfg.MetadataDSN)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.MetadataDriver, err)
		}
		defer repo.Close()
		meta = repo
	default:
		return fmt.Errorf("unknown metadata driver %q", cfg.MetadataDriver)
	}

	blobs, err := blob.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	redis := redisSvc.NewRedis(rdb)

	var queue server.Queue
	if err := redis.Ping(ctx); err != nil {
		log.Warn("redis unavailable, running without shared locks and offline queue", zap.Error(err))
	} else {
		opts.Locker = conversation.NewRedisLocker(redis, cfg.LockTTL)
		queue = redis
	}

	hub := server.NewHub(queue)
	opts.Notifier = hub
	store := conversation.New(meta, blobs, opts)

	log.Info("conversation store ready",
		zap.String("metadata", cfg.MetadataDriver), zap.String("data_dir", blobs.Dir()))
	return server.NewHttpServer(cfg.Addr, store, hub).Run(ctx)
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
