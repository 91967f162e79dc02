package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/events"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	log := cfg.Logger().With("component", "notifier")
	if err := run(cfg, log); err != nil {
		log.Error("notifier stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}

	n := notify.New(rdb, cfg.ServiceName+"-notifier", log)

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	for _, topic := range []string{events.TopicOrders, events.TopicTickets} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("consumer started", "group", cfg.NotifierGroup, "topic", topic, "workers", cfg.NotifierWorkers)
			if err := cons.Start(ctx, n.Handle); err != nil {
				errc <- fmt.Errorf("consumer %s: %w", topic, err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	var err error
	select {
	case <-sig:
		log.Info("shutting down consumers")
	case err = <-errc:
	}
	cancel()
	wg.Wait()
	return err
}
