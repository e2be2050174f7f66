package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"

	"inkgate/internal/cache"
	"inkgate/internal/config"
	"inkgate/internal/database"
	"inkgate/internal/engine"
	"inkgate/internal/handlers"
	"inkgate/internal/middleware"
	"inkgate/internal/models"
	"inkgate/internal/uploads"
	"inkgate/internal/utils"
	"inkgate/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))

	middleware.SetSecret(cfg.JWTSecret)
	metrics := utils.NewMetricsCollector()

	ctx := context.Background()
	db, err := database.NewMongoDB(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "uri", cfg.Mongo.URI, "error", err)
		os.Exit(1)
	}
	defer db.Close(ctx)
	slog.Info("Connected to MongoDB", "database", cfg.Mongo.Database)

	// The listing cache is optional. A Redis that is down only costs us the
	// snapshot cache, so failures here never stop startup.
	var blogCache *cache.BlogCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unavailable, listing cache disabled", "addr", cfg.Redis.Addr, "error", err)
	} else {
		blogCache = cache.NewBlogCache(redisClient, cfg.Redis.CacheTTL)
		slog.Info("Listing cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// Image storage is optional too; without credentials the upload endpoint
	// reports itself unavailable.
	uploadsClient, err := uploads.NewClient(cfg.S3)
	if err != nil {
		slog.Warn("Image storage disabled", "error", err)
		uploadsClient = nil
	}

	hub := websocket.NewHub()
	go hub.Run()

	system := actor.NewActorSystem()
	blogEngine := engine.NewEngine(system, metrics, db)

	server := handlers.NewServer(system, blogEngine, metrics, db, blogCache, uploadsClient, hub)

	// Every confirmed write flows back out through the change stream: the
	// cache is refreshed and each websocket subscriber gets a full listing
	// replace rendered for its own viewer.
	sub, err := db.SubscribeBlogs(ctx,
		func(posts []*models.BlogPost) {
			blogCache.Set(ctx, posts)
			hub.BroadcastSnapshot(posts)
		},
		func(err error) {
			// No automatic retry. Operators restart or re-subscribe once
			// the store is reachable again; meanwhile reads still work.
			slog.Error("Blog change stream ended", "error", err)
		},
	)
	if err != nil {
		slog.Error("Failed to subscribe to blog changes", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/blogs", middleware.WithOptionalViewer(server.HandleBlogs()))
	mux.HandleFunc("/blogs/image", middleware.RequireViewer(server.HandleBlogImage()))
	mux.HandleFunc("/blogs/like", middleware.RequireViewer(server.HandleLike()))
	mux.HandleFunc("/payment/complete", middleware.RequireViewer(server.HandlePaymentComplete()))
	mux.HandleFunc("/payment/receipts", middleware.RequireViewer(server.HandlePaymentReceipts()))
	mux.HandleFunc("/ws", server.HandleWebSocket())

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler := middleware.CORSMiddleware(corsConfig)(mux)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
