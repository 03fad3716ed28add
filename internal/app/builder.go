package app

import (
	"context"
	"fmt"
	"time"

	"traderail/internal/account"
	"traderail/internal/config"
	"traderail/internal/fetch"
	"traderail/internal/gateway"
	"traderail/internal/logger"
	"traderail/internal/marketclock"
	"traderail/internal/schema"
	"traderail/internal/store/journal"
	"traderail/internal/store/rawarchive"
	httpapi "traderail/internal/transport/http"
)

// AppBuilder assembles the application dependencies in order: clock,
// gateways, schema registry, stores, aggregator, manager, HTTP server.
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	clock, err := marketclock.New(cfg.Market.Timezone, cfg.Market.Open)
	if err != nil {
		return nil, fmt.Errorf("building market clock failed: %w", err)
	}

	gateways, err := gateway.NewAll(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := schema.NewRegistry(cfg.Schema.Path, cfg.Schema.Watch)
	if err != nil {
		logger.Warnf("schema registry unavailable, payload validation disabled: %v", err)
		registry = nil
	}

	jnl, err := journal.NewStore(cfg.Store.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("opening fill journal failed: %w", err)
	}
	arc, err := rawarchive.New(cfg.Store.ArchivePath)
	if err != nil {
		jnl.Close()
		return nil, fmt.Errorf("opening raw archive failed: %w", err)
	}

	accountIDs := make(map[string]string)
	for _, bc := range cfg.EnabledBrokers() {
		accountIDs[bc.Name] = bc.AccountID
	}
	agg := account.NewAggregator(gateways, accountIDs, clock, fetch.Options{
		PageSize:    cfg.Fetch.PageSize,
		Concurrency: cfg.Fetch.Concurrency,
		PartialOK:   cfg.Fetch.PartialOK,
	}, jnl, arc)
	mgr := account.NewManager(gateways, registry)

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:       cfg.App.HTTPAddr,
		Aggregator: agg,
		Manager:    mgr,
	})
	if err != nil {
		jnl.Close()
		arc.Close()
		return nil, fmt.Errorf("building http server failed: %w", err)
	}

	return &App{
		cfg:             cfg,
		aggregator:      agg,
		manager:         mgr,
		httpServer:      server,
		journal:         jnl,
		archive:         arc,
		refreshInterval: time.Duration(cfg.Account.RefreshIntervalSeconds) * time.Second,
	}, nil
}
