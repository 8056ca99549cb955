package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/group-2-odp-bni/be-capstone-project/internal/api"
	"github.com/group-2-odp-bni/be-capstone-project/internal/auth"
	"github.com/group-2-odp-bni/be-capstone-project/internal/config"
	"github.com/group-2-odp-bni/be-capstone-project/internal/events"
	"github.com/group-2-odp-bni/be-capstone-project/internal/ledger"
	"github.com/group-2-odp-bni/be-capstone-project/internal/service"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage/mongo"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage/sqlite"
	"github.com/group-2-odp-bni/be-capstone-project/internal/token"
	"github.com/group-2-odp-bni/be-capstone-project/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.StoreDriver)

	var (
		bus *events.Bus
		pub service.Publisher
	)
	if cfg.NATSURL != "" {
		bus, err = events.Connect(ctx, cfg.NATSURL)
		if err != nil {
			slog.Error("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		pub = events.NewPublisher(bus)
		slog.Info("Message bus connected", "url", cfg.NATSURL)
	} else {
		slog.Warn("NATS_URL not set, running without a message bus")
	}

	led := ledger.New(store)
	tokens := token.New(cfg.ShortLinkSecret, cfg.ShortLinkTTL, cfg.AppBaseURL, store)
	bills := service.New(store, led, tokens, pub)
	jwt := auth.NewJWTManager(cfg.JWTSecret)

	if bus != nil {
		consumer := events.NewConsumer(bus, led)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("Payment status consumer stopped", "error", err)
			}
		}()
	}

	var busHealth api.BusHealth
	if bus != nil {
		busHealth = bus
	}
	a := api.New(bills, led, tokens, store, jwt, busHealth, cfg.CORSOrigins, cfg.AppBaseURL)

	srv := &http.Server{
		Addr:              cfg.HTTPBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "address", cfg.HTTPBind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		return mongo.New(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}
