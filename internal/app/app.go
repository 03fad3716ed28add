// Package app wires configuration into running services: the snapshot
// refresh loop and the HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"traderail/internal/account"
	"traderail/internal/config"
	"traderail/internal/logger"
	"traderail/internal/scheduler"
	"traderail/internal/store/journal"
	"traderail/internal/store/rawarchive"
	httpapi "traderail/internal/transport/http"
)

// App owns application-level orchestration: build dependencies, run the
// refresh loop and the HTTP server, release resources on shutdown.
type App struct {
	cfg             *config.Config
	aggregator      *account.Aggregator
	manager         *account.Manager
	httpServer      *httpapi.Server
	journal         *journal.Store
	archive         *rawarchive.Archive
	refreshInterval time.Duration
}

// NewApp builds the application object without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the refresh loop and HTTP server and blocks until the context
// is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpServer.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		sched := scheduler.NewIntervalScheduler(ctx, a.refreshInterval)
		sched.RunImmediately = true
		sched.Start(func() {
			if err := a.aggregator.RefreshAll(ctx, time.Now()); err != nil {
				logger.Errorf("snapshot refresh: %v", err)
			}
		})
		return nil
	})

	return group.Wait()
}

// Aggregator exposes the snapshot aggregator (for testing harnesses).
func (a *App) Aggregator() *account.Aggregator {
	if a == nil {
		return nil
	}
	return a.aggregator
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.journal != nil {
		a.journal.Close()
	}
	if a.archive != nil {
		a.archive.Close()
	}
}
