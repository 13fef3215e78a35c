// Package app wires the platform together: database, Redis, data bootstrap,
// the experiment engine and the HTTP API, with graceful shutdown on SIGTERM.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradelab/api"
	"tradelab/auth"
	"tradelab/cache"
	"tradelab/config"
	"tradelab/database"
	"tradelab/database/catalog"
	"tradelab/database/sessions"
	"tradelab/database/users"
	"tradelab/experiment"
	"tradelab/marketdata"
	"tradelab/notifications"
	"tradelab/realtime"
	"tradelab/websocket"
)

// App represents the main application
type App struct {
	config *config.Config
	db     *database.Database
	redis  *cache.RedisClient
	broker *realtime.Broker
	hub    *websocket.Hub
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
	}
}

// Start starts the application
func (a *App) Start() error {
	// 1. Database connection
	fmt.Println("🗄️  Connecting to database...")
	db, err := database.Connect(database.Config{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	// 2. Redis connection (optional)
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)
	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Session persistence disabled.")
	} else {
		a.redis = redisClient
	}

	// 3. Schema + data bootstrap
	repo := database.NewRepository(a.db)
	if err := repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	loader := marketdata.NewLoader(a.db, a.config.DataDir)
	if err := loader.Bootstrap(); err != nil {
		return fmt.Errorf("data bootstrap failed: %w", err)
	}

	// 4. Repositories and engine
	userRepo := users.NewRepository(a.db.DB())
	catalogRepo := catalog.NewRepository(a.db.DB())
	sessionRepo := sessions.NewRepository(a.db.DB())
	engine := experiment.NewEngine(sessionRepo, catalogRepo, experiment.SystemClock())

	// 5. Auth manager
	sessionTTL := time.Duration(a.config.SessionTTLMinutes) * time.Minute
	authMgr := auth.NewManager(userRepo, a.redis, sessionTTL)

	// 6. Live event plumbing
	a.broker = realtime.NewBroker()
	go a.broker.Run()
	a.hub = websocket.NewHub()

	// 7. Completion webhooks
	notifier := notifications.NewWebhookManager(a.config.WebhookURLs)
	if len(a.config.WebhookURLs) > 0 {
		log.Printf("✅ Webhook notifications enabled (%d targets)", len(a.config.WebhookURLs))
	}

	// 8. API server
	apiServer := api.NewServer(engine, userRepo, catalogRepo, sessionRepo, repo, authMgr, a.broker, a.hub, notifier)
	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API Server failed: %v", err)
		}
	}()

	return a.gracefulShutdown()
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown() error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}

		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
