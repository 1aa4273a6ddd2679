package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"dealflow/api"
	"dealflow/chain"
	"dealflow/config"
	"dealflow/db"
	"dealflow/deal"
	"dealflow/interaction"
	"dealflow/messaging"
	"dealflow/poller"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("bootstrap database pool")
	}
	defer pool.Close()

	repo := deal.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.WithError(err).Fatal("apply database schema")
	}

	dealService := deal.NewService(repo)
	locker := deal.NewLocker()
	reader := chain.NewClient(cfg.RPCURL, cfg.FactoryAddress)
	gateway := messaging.NewClient(cfg.GatewayURL, cfg.GatewaySecret)

	registry := interaction.NewRegistry()
	orch := interaction.NewOrchestrator(interaction.Config{
		ChainID:           cfg.ChainID,
		FactoryAddress:    cfg.FactoryAddress,
		TokenAddress:      cfg.TokenAddress,
		ArbitratorAddress: cfg.ArbitratorAddress,
		TokenDecimals:     cfg.TokenDecimals,
		DispatchTimeout:   cfg.DispatchTimeout,
	}, registry, gateway)
	correlator := interaction.NewCorrelator(registry, repo, reader, gateway, orch, locker, cfg.ExplorerURL)

	p := poller.New(repo, reader, gateway, locker, cfg.ArbitratorAddress, cfg.PollInterval, cfg.PollConcurrency)
	if err := p.Start(ctx); err != nil {
		log.WithError(err).Fatal("start reconciliation poller")
	}
	defer p.Stop()

	if cfg.InteractionTTL > 0 {
		go sweepInteractions(ctx, registry, cfg.InteractionTTL)
	}

	server := api.NewServer(api.Options{
		Deals:             dealService,
		Store:             repo,
		Tx:                orch,
		Responses:         correlator,
		Chain:             reader,
		Notifier:          gateway,
		Locker:            locker,
		ArbitratorAddress: cfg.ArbitratorAddress,
		FactoryAddress:    cfg.FactoryAddress,
		GatewaySecret:     cfg.GatewaySecret,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}
	go func() {
		log.WithField("port", cfg.Port).Info("dealflow daemon listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}

// sweepInteractions drops pending interactions whose signing response never
// came back, so an unresponsive gateway cannot grow the registry without
// bound.
func sweepInteractions(ctx context.Context, registry *interaction.Registry, ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.SweepOlderThan(time.Now().Add(-ttl)); n > 0 {
				log.WithField("swept", n).Info("dropped expired pending interactions")
			}
		}
	}
}
