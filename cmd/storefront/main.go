package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freshmart/storefront/internal/auth"
	"github.com/freshmart/storefront/internal/cart"
	"github.com/freshmart/storefront/internal/catalog"
	"github.com/freshmart/storefront/internal/config"
	"github.com/freshmart/storefront/internal/db"
	"github.com/freshmart/storefront/internal/events"
	httpapi "github.com/freshmart/storefront/internal/http"
	"github.com/freshmart/storefront/internal/user"
)

func main() {
	cfg := config.Load()

	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lshortfile)

	if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer pool.Close()

	userRepo := user.NewPostgresRepository(pool)
	catalogRepo := catalog.NewPostgresRepository(pool)
	cartRepo := cart.NewPostgresRepository(cart.NewPgxDB(pool))
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)

	var cartEvents httpapi.CartEventsPublisher
	var userEvents httpapi.UserEventsPublisher
	var publisher *events.Publisher
	if cfg.RabbitURL != "" {
		conn, err := events.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatalf("dial rabbit: %v", err)
		}
		defer conn.Close()

		publisher, err = events.NewPublisher(conn, events.NewSequenceRepository(pool))
		if err != nil {
			logger.Fatalf("create events publisher: %v", err)
		}
		cartEvents = publisher
		userEvents = publisher
	} else {
		logger.Printf("RABBITMQ_URL not set, events disabled")
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:             httpapi.NewAuthHandler(userRepo, cartRepo, tokens, userEvents),
		Cart:             httpapi.NewCartHandler(cartRepo, catalogRepo, cartEvents),
		Catalog:          httpapi.NewCatalogHandler(catalogRepo),
		Tokens:           tokens,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("storefront listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Fatalf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Printf("publisher close error: %v", err)
		}
	}
}
