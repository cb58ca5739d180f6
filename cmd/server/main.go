package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"team-pulse/internal/config"
	"team-pulse/internal/db"
	"team-pulse/internal/gateway"
	"team-pulse/internal/message"
	appmiddleware "team-pulse/internal/middleware"
	"team-pulse/internal/notify"
	"team-pulse/internal/pipeline"
	"team-pulse/internal/presence"
	"team-pulse/internal/realtime"
	"team-pulse/internal/typing"
	"team-pulse/internal/user"
)

func main() {
	addr := flag.String("addr", "", "http service address (overrides ADDR)")
	flag.Parse()

	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}

	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	// Platform layer
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	log.Println("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("connected to Redis")

	ctx := context.Background()

	// Core pipeline
	presenceStore := presence.NewStore()
	typingTracker := typing.NewTracker(cfg.TypingIdle)
	mux := realtime.NewMux(cfg.FanoutTimeout)
	bridge := realtime.NewBridge(redisClient, mux)

	// Presence and typing transitions flow out through the same scope
	// channels as message events.
	presenceStore.OnChange(func(rec presence.Record) {
		if err := bridge.Publish(ctx, realtime.PresenceEvent(rec)); err != nil {
			log.Printf("presence publish failed for %s: %v", rec.UserID, err)
		}
	})
	typingTracker.OnChange(func(sig typing.Signal, isTyping bool) {
		if err := bridge.Publish(ctx, realtime.TypingChanged(sig, isTyping)); err != nil {
			log.Printf("typing publish failed for %s: %v", sig.UserID, err)
		}
	})

	go bridge.Run(ctx)
	go presenceStore.RunSweeper(ctx, cfg.SweepInterval, cfg.StaleTimeout)

	// Expiry is lazy; this just keeps long-idle typing entries from piling up.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			typingTracker.Prune()
		}
	}()

	// Notification path
	prefRepo := notify.NewPreferenceRepository(database.Conn)
	engine := notify.NewEngine(prefRepo, presenceStore, mux, cfg.BaseURL)
	dispatcher := notify.NewRedisDispatcher(redisClient)

	msgRepo := message.NewRepository(database.Conn)
	pipe := pipeline.NewService(msgRepo, bridge, engine, dispatcher)

	// Identity glue
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)
	authMiddleware := appmiddleware.NewAuthMiddleware(userService)

	gw := gateway.New(presenceStore, typingTracker, mux, pipe, msgRepo)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "index.html")
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)

		// Realtime stream
		r.Get("/ws", gw.ServeWS)

		r.Get("/api/presence", gw.ListPresence)
		r.Put("/api/presence/status", gw.SetStatus)
		r.Post("/api/presence/heartbeat", gw.Heartbeat)
		r.Get("/api/typing", gw.ListTyping)
		r.Post("/api/messages", gw.SendMessage)
		r.Get("/api/messages", gw.GetHistory)
		r.Post("/api/messages/{id}/read", gw.MarkRead)
	})

	log.Printf("server starting on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal(err)
	}
}
