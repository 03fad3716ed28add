// Package reconcile walks raw broker order trees and emits the canonical
// entry/exit-pair/execution records. The walk itself is broker-agnostic;
// all wire-shape knowledge comes in through the adapter's classification
// callbacks.
package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/logger"
	"traderail/internal/marketclock"
	"traderail/internal/types"
)

// MaxDepth bounds recursion into nested order structures. Anything deeper
// is treated as malformed.
const MaxDepth = 10

// SchemaMismatchError marks a subtree whose shape violates the broker's own
// schema: wrong working-leg count, a leg missing its price, or recursion
// past MaxDepth. The subtree is skipped; siblings are unaffected.
type SchemaMismatchError struct {
	OrderID string
	Reason  string
}

func (e *SchemaMismatchError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("order schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("order schema mismatch (%s): %s", e.OrderID, e.Reason)
}

// Result is the reconciler output: three symbol-keyed record maps.
type Result struct {
	Entries    map[string][]types.EntryOrder
	Pairs      map[string][]types.ExitPair
	Executions map[string][]types.OrderExecution
}

func newResult() *Result {
	return &Result{
		Entries:    make(map[string][]types.EntryOrder),
		Pairs:      make(map[string][]types.ExitPair),
		Executions: make(map[string][]types.OrderExecution),
	}
}

// Reconciler drives the recursive walk. OnUnknownStatus, when set, receives
// every UnknownStatusError recorded during a parse; the affected orders are
// kept and treated as working.
type Reconciler struct {
	cls             broker.Classifier
	clock           *marketclock.Clock
	OnUnknownStatus func(error)
}

// New builds a reconciler over one adapter's classification callbacks.
func New(cls broker.Classifier, clock *marketclock.Clock) *Reconciler {
	return &Reconciler{cls: cls, clock: clock}
}

// Parse reconciles the full list of raw top-level order nodes for an
// account. It is best-effort per subtree: malformed structures are logged
// and skipped so unrelated symbols stay complete. Executions are restricted
// to the trading day containing now and returned sorted by fill time.
func (r *Reconciler) Parse(nodes []gjson.Result, now time.Time) *Result {
	out := newResult()
	for _, node := range nodes {
		info, err := r.describe(node)
		if err != nil {
			logger.Warnf("skipping top-level order node: %v", err)
			continue
		}
		r.dispatch(node, info, out)
		r.collectExecutions(node, info.Symbol, now, 0, out)
	}
	for sym := range out.Executions {
		execs := out.Executions[sym]
		sort.SliceStable(execs, func(i, j int) bool {
			return execs[i].FilledAt.Before(execs[j].FilledAt)
		})
		out.Executions[sym] = execs
	}
	return out
}

// dispatch applies the per-node rules: singles carry no structure, working
// brackets surface an entry, filled brackets hand their OCO children to the
// pair extractor, and a top-level OCO is a standalone managed exit.
func (r *Reconciler) dispatch(node gjson.Result, info broker.NodeInfo, out *Result) {
	switch info.Kind {
	case broker.KindSingle:
		// Fill handling happens in the execution walk; an unstructured
		// single order has no entry or exit semantics at top level.
	case broker.KindBracket:
		r.dispatchBracket(node, info, 0, out)
	case broker.KindOCO:
		r.extractPair(node, info, types.PairSourceOCO, "", out)
	}
}

func (r *Reconciler) dispatchBracket(node gjson.Result, info broker.NodeInfo, depth int, out *Result) {
	if depth > MaxDepth {
		logger.Warnf("%v", &SchemaMismatchError{OrderID: info.ID, Reason: "bracket nesting exceeds depth bound"})
		return
	}
	switch info.Status {
	case types.StatusWorking:
		entry := types.EntryOrder{
			Symbol:        info.Symbol,
			OrderID:       info.ID,
			Kind:          info.OrderKind,
			Quantity:      info.Quantity,
			Side:          info.Side,
			OpensPosition: info.OpensPosition,
		}
		if pe, ok := r.cls.Prospective(node); ok {
			entry.ProspectiveStop = pe.Stop
			entry.ProspectiveLimit = pe.Limit
		}
		out.Entries[info.Symbol] = append(out.Entries[info.Symbol], entry)
	case types.StatusFilled:
		for _, child := range r.cls.Children(node) {
			cinfo, err := r.describe(child)
			if err != nil {
				logger.Warnf("skipping child of %s: %v", info.ID, err)
				continue
			}
			if cinfo.Symbol == "" {
				cinfo.Symbol = info.Symbol
			}
			switch cinfo.Kind {
			case broker.KindOCO:
				r.extractPair(child, cinfo, types.PairSourceOTO, info.ID, out)
			case broker.KindBracket:
				r.dispatchBracket(child, cinfo, depth+1, out)
			}
		}
	}
}

// extractPair collects the working descendant legs of an OCO node and emits
// an ExitPair only when exactly one STOP and one LIMIT leg remain working.
// Any other shape means the pair is no longer live or the structure is
// malformed; it is discarded whole, never half-populated.
func (r *Reconciler) extractPair(node gjson.Result, info broker.NodeInfo, source types.PairSource, parentID string, out *Result) {
	legs, err := r.workingLegs(node, info.Symbol, 0)
	if err != nil {
		logger.Warnf("discarding exit pair under %s: %v", info.ID, err)
		return
	}
	if len(legs) != 2 {
		logger.Debugf("exit group %s has %d working legs, not emitting a pair", info.ID, len(legs))
		return
	}
	pair := types.ExitPair{Symbol: info.Symbol, Source: source, ParentID: parentID}
	for _, leg := range legs {
		if leg.Price <= 0 {
			logger.Warnf("discarding exit pair under %s: %v", info.ID,
				&SchemaMismatchError{OrderID: leg.ID, Reason: "working leg missing price"})
			return
		}
		ol := &types.OrderLeg{ID: leg.ID, Price: leg.Price, Quantity: leg.Quantity, Side: leg.Side}
		switch leg.OrderKind {
		case types.KindStop:
			if pair.Stop != nil {
				logger.Warnf("discarding exit pair under %s: %v", info.ID,
					&SchemaMismatchError{OrderID: info.ID, Reason: "two stop legs in one exit group"})
				return
			}
			pair.Stop = ol
		case types.KindLimit:
			if pair.Limit != nil {
				logger.Warnf("discarding exit pair under %s: %v", info.ID,
					&SchemaMismatchError{OrderID: info.ID, Reason: "two limit legs in one exit group"})
				return
			}
			pair.Limit = ol
		default:
			logger.Warnf("discarding exit pair under %s: %v", info.ID,
				&SchemaMismatchError{OrderID: leg.ID, Reason: fmt.Sprintf("unexpected leg kind %q in exit group", leg.OrderKind)})
			return
		}
	}
	out.Pairs[pair.Symbol] = append(out.Pairs[pair.Symbol], pair)
}

// workingLegs recursively gathers working leaf legs beneath an exit group.
// Degenerate payloads nest OCO groups inside OCO groups; recursion continues
// to the leaves under the depth bound.
func (r *Reconciler) workingLegs(node gjson.Result, symbol string, depth int) ([]broker.NodeInfo, error) {
	if depth > MaxDepth {
		return nil, &SchemaMismatchError{Reason: "exit group nesting exceeds depth bound"}
	}
	var legs []broker.NodeInfo
	for _, child := range r.cls.Children(node) {
		cinfo, err := r.describe(child)
		if err != nil {
			return nil, err
		}
		if cinfo.Symbol == "" {
			cinfo.Symbol = symbol
		}
		if len(r.cls.Children(child)) > 0 {
			sub, err := r.workingLegs(child, cinfo.Symbol, depth+1)
			if err != nil {
				return nil, err
			}
			legs = append(legs, sub...)
			continue
		}
		if cinfo.Status == types.StatusWorking {
			legs = append(legs, cinfo)
		}
	}
	return legs, nil
}

// describe wraps the adapter callback, recording unknown-status errors while
// keeping the node (conservatively working).
func (r *Reconciler) describe(node gjson.Result) (broker.NodeInfo, error) {
	info, err := r.cls.Describe(node)
	if err != nil {
		var unknown *broker.UnknownStatusError
		if errors.As(err, &unknown) {
			logger.Warnf("%v (treating as working)", unknown)
			if r.OnUnknownStatus != nil {
				r.OnUnknownStatus(unknown)
			}
			return info, nil
		}
		return info, err
	}
	return info, nil
}
