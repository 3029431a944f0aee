package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-relay/bus"
	"chat-relay/dispatch"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle. Keeping
// the logic out of main ensures deferred cleanup (badger, redis) executes on
// every exit path and keeps startup testable.
func run() error {
	// 1. Configuration & Logger
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Repositories
	users, err := repositories.NewUserRepository(db)
	if err != nil {
		return err
	}
	defer users.Close()
	groups, err := repositories.NewGroupRepository(db)
	if err != nil {
		return err
	}
	defer groups.Close()
	friends := repositories.NewFriendRepository(db, users)
	offline := repositories.NewOfflineQueue(db, log)

	// 5. Bus (redis pub/sub)
	redisBus, err := bus.NewRedisBus(ctx, config.RedisURL, config.CallTimeout, log)
	if err != nil {
		return fmt.Errorf("bus connection failed: %w", err)
	}
	defer func() {
		log.Info("Closing redis bus...")
		_ = redisBus.Close()
	}()

	// 6. Core services
	registry := runtime.NewRegistry()
	metricsReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(metricsReg)

	router := services.NewDeliveryRouter(registry, users, redisBus, offline, metrics, log)
	auth := services.NewAuthService(registry, users, friends, offline, redisBus, metrics, log)
	groupSvc := services.NewGroupService(groups, router, log)
	chat := services.NewChatService(router, groupSvc, friends)
	bridge := services.NewBusBridge(registry, offline, metrics, log)

	// Heal presence flags left dangling by a prior crash.
	if err := auth.ResetAllOnStartup(); err != nil {
		return fmt.Errorf("presence reset failed: %w", err)
	}

	// 7. Inbound bus loop
	go redisBus.Run(ctx, bridge.Handle)

	// 8. Dispatch table & transport
	dispatcher := dispatch.NewDispatcher(log)
	dispatch.Bind(dispatcher, auth, chat, groupSvc, log)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	// 9. Metrics endpoint
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.MetricsPort),
		Handler: promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", "error", err)
		}
	}()

	errChan := make(chan error, 1)
	server := transport.NewServer(dispatcher, auth, log)
	go func() {
		log.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		errChan <- server.Serve(ctx, listener)
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("Program stopped cleanly")

	return nil
}
