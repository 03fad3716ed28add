package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/logger"
	"traderail/internal/types"
)

// collectExecutions walks the whole subtree and turns every fill activity on
// a filled node into one aggregated OrderExecution. Fills dated outside the
// current trading day are discarded.
func (r *Reconciler) collectExecutions(node gjson.Result, parentSymbol string, now time.Time, depth int, out *Result) {
	if depth > MaxDepth {
		logger.Warnf("%v", &SchemaMismatchError{Reason: "order nesting exceeds depth bound"})
		return
	}
	info, err := r.describe(node)
	if err != nil {
		logger.Warnf("skipping fills on malformed node: %v", err)
		return
	}
	if info.Symbol == "" {
		info.Symbol = parentSymbol
	}
	if info.Status == types.StatusFilled {
		for _, fill := range r.cls.Fills(node) {
			if !r.clock.SameTradingDay(fill.Time, now) {
				continue
			}
			qty, price, ok := aggregateFill(fill)
			if !ok {
				logger.Warnf("%v", &SchemaMismatchError{OrderID: info.ID, Reason: "fill activity with zero total quantity"})
				continue
			}
			out.Executions[info.Symbol] = append(out.Executions[info.Symbol], types.OrderExecution{
				Symbol:           info.Symbol,
				FilledAt:         fill.Time,
				Quantity:         qty,
				Price:            price,
				Side:             info.Side,
				ClosesPosition:   !info.OpensPosition,
				Bucket:           r.clock.MinuteBucket(fill.Time),
				MinutesSinceOpen: r.clock.MinutesSinceOpen(fill.Time),
			})
		}
	}
	for _, child := range r.cls.Children(node) {
		r.collectExecutions(child, info.Symbol, now, depth+1, out)
	}
}

// aggregateFill folds an activity's legs into total quantity and the
// quantity-weighted average price. Decimal arithmetic keeps the weighting
// exact before the final float conversion.
func aggregateFill(fill broker.Fill) (qty, price float64, ok bool) {
	total := decimal.Zero
	notional := decimal.Zero
	for _, leg := range fill.Legs {
		q := decimal.NewFromFloat(leg.Quantity)
		p := decimal.NewFromFloat(leg.Price)
		total = total.Add(q)
		notional = notional.Add(q.Mul(p))
	}
	if total.IsZero() {
		return 0, 0, false
	}
	qty, _ = total.Float64()
	price, _ = notional.Div(total).Float64()
	return qty, price, true
}
