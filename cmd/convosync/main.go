package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/convosync/internal/api"
	"github.com/yourorg/convosync/internal/auth"
	"github.com/yourorg/convosync/internal/blob"
	"github.com/yourorg/convosync/internal/cache"
	cfgpkg "github.com/yourorg/convosync/internal/config"
	"github.com/yourorg/convosync/internal/events"
	"github.com/yourorg/convosync/internal/logger"
	"github.com/yourorg/convosync/internal/profile"
	"github.com/yourorg/convosync/internal/store"
	"github.com/yourorg/convosync/internal/upload"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	mc, err := store.NewMongoClient(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo init", "error", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)

	recordStore := store.NewMongoStore(db.Collection(cfg.Mongo.MessagesCollection), zl)

	cacheCli, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		zl.Warnw("redis unavailable, running without cache", "error", err)
		cacheCli = nil
	} else {
		defer cacheCli.Close()
	}

	blobStore, err := blob.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicRead, 15*time.Minute)
	if err != nil {
		zl.Fatalw("s3 init", "error", err)
	}
	pipeline := upload.NewPipeline(blobStore, recordStore, zl)

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicMessage, zl)
	defer publisher.Close()

	resolver := profile.NewResolver(db.Collection(cfg.Mongo.ProfilesCollection), cacheCli, 10*time.Minute, zl)
	sessions := auth.NewSessions(cfg.JWT.Secret, cfg.SessionTTL)

	app := api.NewServer(cfg, zl, recordStore, pipeline, resolver, sessions, cacheCli, publisher)

	go func() {
		if err := app.Listen(":" + strconv.Itoa(cfg.App.Port)); err != nil {
			zl.Fatalw("server listen", "error", err)
		}
	}()
	zl.Infow("convosync started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zl.Info("convosync stopped")
}
