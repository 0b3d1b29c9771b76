package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mharkness/go-chatrelay/internal/api"
	"github.com/mharkness/go-chatrelay/internal/bus"
	"github.com/mharkness/go-chatrelay/internal/config"
	"github.com/mharkness/go-chatrelay/internal/durable"
	"github.com/mharkness/go-chatrelay/internal/relay"
	"github.com/mharkness/go-chatrelay/internal/stats"
	"github.com/mharkness/go-chatrelay/internal/store"
)

func main() {
	logger := log.New(os.Stderr, "[chat-relay] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config: ", err)
	}

	db, err := store.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mux := http.NewServeMux()
	recorder := stats.NewPromRecorder(mux)

	fanout, err := bus.NewRedisBus(cfg.RedisAddr, cfg.RedisPassword, cfg.Topic, logger)
	if err != nil {
		logger.Fatal("redis: ", err)
	}
	defer fanout.Close()

	writer := durable.NewWriter(db, logger, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pipeline durable.Pipeline
	switch cfg.RelayMode {
	case config.ModeDurable:
		jsLog, err := durable.NewJetStreamLog(durable.JetStreamConfig{
			URL:           cfg.NatsURL,
			Topic:         cfg.Topic,
			ConsumerGroup: cfg.ConsumerGroup,
			RetryBackoff:  cfg.RetryBackoff,
			MaxDeliver:    cfg.MaxDeliver,
		}, writer, logger)
		if err != nil {
			logger.Fatal("jetstream: ", err)
		}

		go func() {
			if err := jsLog.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Println("log consumer:", err)
			}
		}()
		pipeline = jsLog
	default:
		pipeline = durable.NewDirectPipeline(writer, logger)
	}
	defer pipeline.Close()

	relayServer, err := relay.NewServer(logger, db, fanout, pipeline, recorder)
	if err != nil {
		logger.Fatal("new relay server: ", err)
	}

	srv := api.NewRelayApp(mux, logger, relayServer, db, cfg)

	go func() {
		if err := relayServer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Println("relay run:", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancelShutdown := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancelShutdown()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay...")
	relayServer.Shutdown()
	cancel()

	logger.Println("shutdown complete")
}
