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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/alhaqil/storefront/internal/auth"
	"github.com/alhaqil/storefront/internal/backend"
	cartengine "github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/catalog"
	"github.com/alhaqil/storefront/internal/checkout"
	"github.com/alhaqil/storefront/internal/config"
	"github.com/alhaqil/storefront/internal/events"
	"github.com/alhaqil/storefront/internal/handlers"
	authhttp "github.com/alhaqil/storefront/internal/handlers/auth"
	carthttp "github.com/alhaqil/storefront/internal/handlers/cart"
	"github.com/alhaqil/storefront/internal/httpserver"
	"github.com/alhaqil/storefront/internal/logging"
	"github.com/alhaqil/storefront/internal/store"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("store db init error: %v", err)
	}
	s := store.New(db)

	api := backend.New(configuration.BACKEND_URL)

	var producer *events.Producer
	var publisher events.Publisher
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
		publisher = producer
	}

	var cache catalog.Cache
	if configuration.REDIS_ADDR != "" {
		cache = catalog.NewRedisCache(redis.NewClient(&redis.Options{Addr: configuration.REDIS_ADDR}))
	}

	engine := cartengine.NewEngine(s, api, publisher, logger)
	sessions := auth.NewManager(s, api, engine, publisher, logger)
	payments := checkout.NewStripePayments(configuration.STRIPE_SECRET, configuration.SUCCESS_URL, configuration.CANCEL_URL)
	orchestrator := checkout.NewOrchestrator(
		s, api, engine, payments, publisher, logger,
		configuration.SHIPPING_RATE, configuration.CURRENCY, configuration.ORDER_PREFIX,
	)
	catalogSvc := catalog.NewService(api, cache, s, logger)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	httpserver.Register(e, &httpserver.Deps{
		Auth:     &authhttp.AuthHandler{Manager: sessions, API: api},
		Cart:     &carthttp.CartHandler{Engine: engine, Auth: sessions},
		Checkout: &handlers.CheckoutHandler{Orchestrator: orchestrator, Auth: sessions, Store: s},
		Catalog:  &handlers.CatalogHandler{Catalog: catalogSvc},
		Account:  &handlers.AccountHandler{API: api, Auth: sessions},
		Sessions: sessions,
		Log:      logger,
	})

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	logger.Info("server_stopped")
}
