// Package account builds and publishes reconciled account snapshots and
// routes order mutations to the owning gateway.
package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"traderail/internal/fetch"
	"traderail/internal/gateway/broker"
	"traderail/internal/logger"
	"traderail/internal/marketclock"
	"traderail/internal/reconcile"
	"traderail/internal/store/journal"
	"traderail/internal/store/rawarchive"
	"traderail/internal/types"
)

// Source is one broker account feeding the aggregator.
type Source struct {
	Name      string
	AccountID string
	Gateway   broker.Gateway
	fetcher   *fetch.Fetcher
	rec       *reconcile.Reconciler
}

// Aggregator refreshes per-broker snapshots. A refresh either completes every
// stage and publishes a whole snapshot, or fails and leaves the previous one
// in place; readers never observe a half-built state.
type Aggregator struct {
	sources map[string]*Source
	journal *journal.Store
	archive *rawarchive.Archive

	mu        sync.RWMutex
	snapshots map[string]*types.AccountSnapshot
}

// NewAggregator builds the aggregator over the enabled gateways. journal and
// archive may be nil; persistence is then skipped.
func NewAggregator(gateways map[string]broker.Gateway, accountIDs map[string]string,
	clock *marketclock.Clock, opts fetch.Options, jnl *journal.Store, arc *rawarchive.Archive) *Aggregator {
	sources := make(map[string]*Source, len(gateways))
	for name, gw := range gateways {
		sources[name] = &Source{
			Name:      name,
			AccountID: accountIDs[name],
			Gateway:   gw,
			fetcher:   fetch.New(gw.Client, gw.Adapter, clock, opts),
			rec:       reconcile.New(gw.Adapter, clock),
		}
	}
	return &Aggregator{
		sources:   sources,
		journal:   jnl,
		archive:   arc,
		snapshots: make(map[string]*types.AccountSnapshot),
	}
}

// Brokers lists the configured broker names.
func (a *Aggregator) Brokers() []string {
	out := make([]string, 0, len(a.sources))
	for name := range a.sources {
		out = append(out, name)
	}
	return out
}

// RefreshAll refreshes every broker concurrently. Brokers are independent:
// one failing leaves the others' fresh snapshots published.
func (a *Aggregator) RefreshAll(ctx context.Context, now time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	for name := range a.sources {
		name := name
		g.Go(func() error {
			if _, err := a.Refresh(gctx, name, now); err != nil {
				return fmt.Errorf("%s refresh failed: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Refresh runs the full pipeline for one broker: fetch the day's orders,
// reconcile them, read balances and positions, then publish the assembled
// snapshot. Any stage error aborts the refresh before publication.
func (a *Aggregator) Refresh(ctx context.Context, brokerName string, now time.Time) (*types.AccountSnapshot, error) {
	src, ok := a.sources[brokerName]
	if !ok {
		return nil, fmt.Errorf("unknown broker %q", brokerName)
	}

	nodes, err := src.fetcher.FetchDay(ctx, now)
	if err != nil {
		return nil, err
	}
	res := src.rec.Parse(nodes, now)
	info, err := src.Gateway.Client.Account(ctx)
	if err != nil {
		return nil, err
	}

	snap := types.NewAccountSnapshot(src.Name, src.AccountID)
	snap.Balance = info.Balance
	snap.Entries = res.Entries
	snap.ExitPairs = res.Pairs
	snap.Executions = res.Executions
	for _, pos := range info.Positions {
		snap.Positions[pos.Symbol] = pos
	}
	snap.RawPayload = info.Raw

	a.mu.Lock()
	a.snapshots[brokerName] = snap
	a.mu.Unlock()

	a.persist(ctx, src, snap, nodes)
	return snap, nil
}

// persist is best-effort: the stores are diagnostics and replay aids, and a
// storage hiccup must not invalidate a published snapshot.
func (a *Aggregator) persist(ctx context.Context, src *Source, snap *types.AccountSnapshot, nodes []gjson.Result) {
	if a.archive != nil {
		byID := make(map[string]gjson.Result, len(nodes))
		for _, node := range nodes {
			if info, err := src.Gateway.Adapter.Describe(node); err == nil && info.ID != "" {
				byID[info.ID] = node
			}
		}
		if err := a.archive.StoreDay(ctx, src.Name, snap.TakenAt, byID); err != nil {
			logger.Warnf("archiving %s raw orders failed: %v", src.Name, err)
		}
	}
	if a.journal != nil {
		for _, execs := range snap.Executions {
			if err := a.journal.RecordExecutions(ctx, src.Name, src.AccountID, execs); err != nil {
				logger.Warnf("journaling %s executions failed: %v", src.Name, err)
				break
			}
		}
		if err := a.journal.RecordSnapshot(ctx, snap); err != nil {
			logger.Warnf("journaling %s snapshot failed: %v", src.Name, err)
		}
	}
}

// Snapshot returns the last published snapshot for one broker.
func (a *Aggregator) Snapshot(brokerName string) (*types.AccountSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[brokerName]
	return snap, ok
}

// Snapshots returns the last published snapshot of every broker.
func (a *Aggregator) Snapshots() map[string]*types.AccountSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]*types.AccountSnapshot, len(a.snapshots))
	for name, snap := range a.snapshots {
		out[name] = snap
	}
	return out
}
