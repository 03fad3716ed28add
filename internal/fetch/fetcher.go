// Package fetch retrieves a full trading day of orders from a broker whose
// list endpoint truncates at a fixed page size. The day is recursively
// partitioned into time buckets until every bucket is provably under the
// cap; results are merged and deduplicated by order id.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"traderail/internal/gateway/broker"
	"traderail/internal/logger"
	"traderail/internal/marketclock"
)

// PartialDataError reports a window at the 1-minute recursion floor that
// still returned a full page: order density exceeds design assumptions and
// the result would silently miss orders.
type PartialDataError struct {
	From  time.Time
	To    time.Time
	Count int
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("window %s..%s still full at minute granularity (%d orders)",
		e.From.Format(time.RFC3339), e.To.Format(time.RFC3339), e.Count)
}

// Options tune a Fetcher. Zero values fall back to defaults.
type Options struct {
	// PageSize is the broker's list-orders cap P. A window returning >= P
	// orders is treated as possibly truncated.
	PageSize int
	// Concurrency bounds simultaneous bucket fetches (broker rate limits).
	Concurrency int
	// PartialOK makes FetchDay return whatever merged on cancellation
	// instead of the default all-or-nothing behavior.
	PartialOK bool
}

const (
	defaultPageSize    = 500
	defaultConcurrency = 4
)

// Fetcher retrieves complete order days for one broker account.
type Fetcher struct {
	client      broker.Client
	cls         broker.Classifier
	clock       *marketclock.Clock
	pageSize    int
	concurrency int
	partialOK   bool
}

// New builds a fetcher over one gateway's client and classifier.
func New(client broker.Client, cls broker.Classifier, clock *marketclock.Clock, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Fetcher{
		client:      client,
		cls:         cls,
		clock:       clock,
		pageSize:    opts.PageSize,
		concurrency: opts.Concurrency,
		partialOK:   opts.PartialOK,
	}
}

// FetchDay returns every order entered on day's trading day, deduplicated
// by order id and sorted by id so repeated runs against an unchanged
// backend yield identical results. Any window failure fails the whole day:
// a partially fetched order list is unsafe for downstream decisions. With
// PartialOK set, cancellation instead returns the orders merged so far
// together with the context error.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time) ([]gjson.Result, error) {
	var (
		mu     sync.Mutex
		merged = make(map[string]gjson.Result)
	)

	queue := f.dayWindows(day)
	for len(queue) > 0 {
		var next []window
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.concurrency)
		for _, w := range queue {
			w := w
			g.Go(func() error {
				nodes, err := f.client.ListOrders(gctx, w.From, w.To, f.pageSize)
				if err != nil {
					return err
				}
				if len(nodes) >= f.pageSize {
					sub, ok := split(w)
					if !ok {
						return &PartialDataError{From: w.From, To: w.To, Count: len(nodes)}
					}
					logger.Debugf("window %s..%s returned a full page, splitting into %d buckets",
						w.From.Format("15:04"), w.To.Format("15:04"), len(sub))
					mu.Lock()
					next = append(next, sub...)
					mu.Unlock()
					return nil
				}
				mu.Lock()
				for _, node := range nodes {
					info, _ := f.cls.Describe(node)
					if info.ID == "" {
						continue
					}
					merged[info.ID] = node
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if f.partialOK && ctx.Err() != nil {
				return sortedByID(merged), ctx.Err()
			}
			return nil, err
		}
		queue = next
	}
	return sortedByID(merged), nil
}

// sortedByID flattens the merge map deterministically.
func sortedByID(merged map[string]gjson.Result) []gjson.Result {
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]gjson.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, merged[id])
	}
	return out
}
