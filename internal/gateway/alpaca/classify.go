package alpaca

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

// Statuses maps Alpaca's lifecycle vocabulary onto the canonical enum.
var Statuses = broker.StatusTable{
	Broker: Name,
	Entries: map[string]types.OrderStatus{
		"new":                  types.StatusWorking,
		"accepted":             types.StatusWorking,
		"pending_new":          types.StatusWorking,
		"partially_filled":     types.StatusWorking,
		"held":                 types.StatusWorking,
		"pending_cancel":       types.StatusWorking,
		"pending_replace":      types.StatusWorking,
		"calculated":           types.StatusWorking,
		"accepted_for_bidding": types.StatusWorking,
		"stopped":              types.StatusWorking,
		"filled":               types.StatusFilled,
		"canceled":             types.StatusCanceled,
		"rejected":             types.StatusRejected,
		"suspended":            types.StatusRejected,
		"replaced":             types.StatusReplaced,
		"expired":              types.StatusExpired,
		"done_for_day":         types.StatusExpired,
	},
}

// Describe classifies one raw order by its order_class tag.
func (a *Adapter) Describe(node gjson.Result) (broker.NodeInfo, error) {
	info := broker.NodeInfo{
		ID:     node.Get("id").String(),
		Symbol: node.Get("symbol").String(),
	}
	switch node.Get("order_class").String() {
	case classBracket:
		info.Kind = broker.KindBracket
	case classOCO:
		info.Kind = broker.KindOCO
	default:
		info.Kind = broker.KindSingle
	}
	switch node.Get("type").String() {
	case typeLimit:
		info.OrderKind = types.KindLimit
		info.Price = node.Get("limit_price").Float()
	case typeStop:
		info.OrderKind = types.KindStop
		info.Price = node.Get("stop_price").Float()
	default:
		info.OrderKind = types.KindMarket
	}
	info.Quantity = node.Get("qty").Float()
	info.Side = node.Get("side").String()
	switch node.Get("position_intent").String() {
	case intentBuyToOpen, intentSellToOpen:
		info.OpensPosition = true
	case intentBuyToClose, intentSellToClose:
		info.OpensPosition = false
	default:
		// Fall back to the side when the intent field is absent.
		info.OpensPosition = info.Side == sideBuy
	}

	rawStatus := node.Get("status").String()
	if rawStatus == "" && info.Kind == broker.KindOCO {
		info.Status = types.StatusWorking
		return info, nil
	}
	status, err := Statuses.Map(rawStatus)
	info.Status = status
	return info, err
}

// Children groups a bracket's flat legs array into one synthetic oco node so
// the exit pair reads as a unit, the way the other brokers nest it natively.
func (a *Adapter) Children(node gjson.Result) []gjson.Result {
	legs := node.Get("legs")
	if !legs.IsArray() || len(legs.Array()) == 0 {
		return nil
	}
	if node.Get("order_class").String() == classBracket {
		wrapper := fmt.Sprintf(`{"order_class":%q,"symbol":%q,"legs":%s}`,
			classOCO, node.Get("symbol").String(), legs.Raw)
		return []gjson.Result{gjson.Parse(wrapper)}
	}
	return legs.Array()
}

// Fills builds one activity from the order-level fill summary.
func (a *Adapter) Fills(node gjson.Result) []broker.Fill {
	qty := node.Get("filled_qty").Float()
	if qty <= 0 {
		return nil
	}
	t, err := time.Parse(time.RFC3339, node.Get("filled_at").String())
	if err != nil {
		return nil
	}
	return []broker.Fill{{
		Time: t,
		Legs: []broker.FillLeg{{Quantity: qty, Price: node.Get("filled_avg_price").Float()}},
	}}
}

// Prospective reads the exit prices of a working bracket. Fresh orders carry
// them in take_profit/stop_loss; once the broker materializes the exits they
// appear as legs.
func (a *Adapter) Prospective(node gjson.Result) (broker.ProspectiveExits, bool) {
	var pe broker.ProspectiveExits
	found := false
	if tp := node.Get("take_profit.limit_price"); tp.Exists() {
		pe.Limit = tp.Float()
		found = true
	}
	if sl := node.Get("stop_loss.stop_price"); sl.Exists() {
		pe.Stop = sl.Float()
		found = true
	}
	if found {
		return pe, true
	}
	for _, leg := range node.Get("legs").Array() {
		switch leg.Get("type").String() {
		case typeLimit:
			pe.Limit = leg.Get("limit_price").Float()
			found = true
		case typeStop:
			pe.Stop = leg.Get("stop_price").Float()
			found = true
		}
	}
	return pe, found
}
