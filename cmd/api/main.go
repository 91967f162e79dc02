package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/app"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	log := cfg.Logger()
	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens and releases them before returning, so
// main can exit with a status code without skipping teardown.
func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka is optional; without brokers events are dropped
	var pub events.Publisher = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		kpub := kafkax.NewPublisher(cfg.KafkaBrokers, []string{events.TopicOrders, events.TopicTickets}, 1024, log)
		kpub.Start(ctx)
		defer kpub.Close() // flush pending events before the writers close
		pub = kpub
	}

	a, err := app.Open(ctx, cfg, app.Options{Publisher: pub, Cache: true}, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()

	if _, err := a.Directory.EnsureAdmin(ctx, "Administrator", cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	metrics.WatchSessions(a.Sessions.Len)

	router := httpx.NewRouter()
	api := &httpx.API{
		Catalog:   a.Catalog,
		Carts:     a.Carts,
		Wishlists: a.Wishlists,
		Orders:    a.Orders,
		Tickets:   a.Tickets,
		Reviews:   a.Reviews,
		Sessions:  a.Sessions,
		Status:    a.Status,
		Log:       log,
	}
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "kafka", len(cfg.KafkaBrokers) > 0)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
