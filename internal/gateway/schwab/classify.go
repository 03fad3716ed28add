package schwab

import (
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

// Statuses maps every status string Schwab emits onto the canonical enum.
// Exported so the totality tests can iterate it.
var Statuses = broker.StatusTable{
	Broker: Name,
	Entries: map[string]types.OrderStatus{
		"AWAITING_PARENT_ORDER":  types.StatusWorking,
		"AWAITING_CONDITION":     types.StatusWorking,
		"AWAITING_MANUAL_REVIEW": types.StatusWorking,
		"ACCEPTED":               types.StatusWorking,
		"PENDING_ACTIVATION":     types.StatusWorking,
		"QUEUED":                 types.StatusWorking,
		"WORKING":                types.StatusWorking,
		"PENDING_CANCEL":         types.StatusWorking,
		"PENDING_REPLACE":        types.StatusWorking,
		"NEW":                    types.StatusWorking,
		"FILLED":                 types.StatusFilled,
		"CANCELED":               types.StatusCanceled,
		"REJECTED":               types.StatusRejected,
		"REPLACED":               types.StatusReplaced,
		"EXPIRED":                types.StatusExpired,
	},
}

// Describe classifies one raw order node by its orderStrategyType.
func (a *Adapter) Describe(node gjson.Result) (broker.NodeInfo, error) {
	info := broker.NodeInfo{
		ID:     node.Get("orderId").String(),
		Symbol: node.Get("orderLegCollection.0.instrument.symbol").String(),
	}
	switch node.Get("orderStrategyType").String() {
	case strategyTrigger:
		info.Kind = broker.KindBracket
	case strategyOCO:
		info.Kind = broker.KindOCO
	default:
		info.Kind = broker.KindSingle
	}
	switch node.Get("orderType").String() {
	case orderTypeLimit:
		info.OrderKind = types.KindLimit
		info.Price = node.Get("price").Float()
	case orderTypeStop:
		info.OrderKind = types.KindStop
		info.Price = node.Get("stopPrice").Float()
	default:
		info.OrderKind = types.KindMarket
	}
	leg := node.Get("orderLegCollection.0")
	info.Quantity = leg.Get("quantity").Float()
	switch leg.Get("instruction").String() {
	case instructionBuy:
		info.Side = "buy"
		info.OpensPosition = true
	case instructionSellShort:
		info.Side = "sell_short"
		info.OpensPosition = true
	case instructionBuyToCover:
		info.Side = "buy_to_cover"
	case instructionSell:
		info.Side = "sell"
	}

	// OCO containers carry no status of their own; only their legs do.
	rawStatus := node.Get("status").String()
	if rawStatus == "" && info.Kind == broker.KindOCO {
		info.Status = types.StatusWorking
		return info, nil
	}
	status, err := Statuses.Map(rawStatus)
	info.Status = status
	return info, err
}

// Children returns the node's child strategies.
func (a *Adapter) Children(node gjson.Result) []gjson.Result {
	return node.Get("childOrderStrategies").Array()
}

// Fills reads the embedded orderActivityCollection. Each EXECUTION activity
// becomes one fill with its execution legs.
func (a *Adapter) Fills(node gjson.Result) []broker.Fill {
	var fills []broker.Fill
	for _, activity := range node.Get("orderActivityCollection").Array() {
		if activity.Get("activityType").String() != "EXECUTION" {
			continue
		}
		var fill broker.Fill
		for _, leg := range activity.Get("executionLegs").Array() {
			if fill.Time.IsZero() {
				if t, err := time.Parse(time.RFC3339, leg.Get("time").String()); err == nil {
					fill.Time = t
				}
			}
			fill.Legs = append(fill.Legs, broker.FillLeg{
				Quantity: leg.Get("quantity").Float(),
				Price:    leg.Get("price").Float(),
			})
		}
		if len(fill.Legs) > 0 {
			fills = append(fills, fill)
		}
	}
	return fills
}

// Prospective surfaces the stop/limit prices of the untriggered child OCO
// group on a working TRIGGER parent.
func (a *Adapter) Prospective(node gjson.Result) (broker.ProspectiveExits, bool) {
	var pe broker.ProspectiveExits
	found := false
	for _, group := range node.Get("childOrderStrategies").Array() {
		if group.Get("orderStrategyType").String() != strategyOCO {
			continue
		}
		for _, child := range group.Get("childOrderStrategies").Array() {
			switch child.Get("orderType").String() {
			case orderTypeLimit:
				pe.Limit = child.Get("price").Float()
				found = true
			case orderTypeStop:
				pe.Stop = child.Get("stopPrice").Float()
				found = true
			}
		}
		break
	}
	return pe, found
}
