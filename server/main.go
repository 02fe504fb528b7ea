package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "desktown-backend/docs"
	"desktown-backend/server/handlers"
	"desktown-backend/server/routes"
	"desktown-backend/server/services"
	"desktown-backend/shared/clients"
	"desktown-backend/shared/config"
	"desktown-backend/shared/database"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/search"
	"desktown-backend/shared/session"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()
	gin.SetMode(cfg.GinMode)

	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()
	store := storage.New(database.GetDB())

	ctx := context.Background()
	redisClient, err := session.NewClient(cfg)
	if err != nil {
		log.Fatalf("Invalid Redis configuration: %v", err)
	}
	sessions, err := session.NewRedisStore(ctx, redisClient)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer sessions.Close()

	objects, err := services.NewObjectStorage()
	if err != nil {
		log.Printf("⚠️  Object storage unavailable, uploads disabled: %v", err)
	}

	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	} else {
		log.Println("⚠️  MEILI_URL not set, search uses PostgreSQL only")
	}
	index := search.NewService(meili, search.NewSQL(database.GetDB()))
	defer index.Close()
	go func() {
		if err := handlers.ReindexSearch(ctx, store, index); err != nil {
			log.Printf("⚠️  search reindex failed: %v", err)
		}
	}()

	sockets := services.NewWebSocketManager(cfg.FrontendURL)
	notifier := services.NewNotifier(store, sockets, cfg)
	mailer := services.NewEmailService(cfg)
	if !mailer.Configured() {
		log.Println("⚠️  SMTP not configured, receipts and office message emails are skipped")
	}
	payments := services.NewPaymentService(store, notifier, mailer, cfg)

	deps := handlers.Dependencies{
		Store:      store,
		Sessions:   sessions,
		Sockets:    sockets,
		Notifier:   notifier,
		Payments:   payments,
		Automation: clients.NewAutomationClient(),
		Objects:    objects,
		Search:     index,
		Mailer:     mailer,
		Config:     cfg,
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	routes.Setup(router, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 DeskTown server starting on port %s...", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Forced shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}
