package tradestation

import (
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

// Statuses maps TradeStation's three-letter codes onto the canonical enum.
var Statuses = broker.StatusTable{
	Broker: Name,
	Entries: map[string]types.OrderStatus{
		"ACK": types.StatusWorking, // received
		"DON": types.StatusWorking, // queued
		"OPN": types.StatusWorking, // sent
		"FPR": types.StatusWorking, // partial fill, still live
		"CND": types.StatusWorking, // condition pending
		"FLL": types.StatusFilled,
		"CAN": types.StatusCanceled,
		"OUT": types.StatusCanceled, // UROut
		"REJ": types.StatusRejected,
		"UCH": types.StatusReplaced,
		"EXP": types.StatusExpired,
	},
}

// Describe classifies one raw node. Group nodes carry Type/Orders; bracket
// parents carry a non-empty OSOs array.
func (a *Adapter) Describe(node gjson.Result) (broker.NodeInfo, error) {
	info := broker.NodeInfo{
		ID:     node.Get("OrderID").String(),
		Symbol: node.Get("Symbol").String(),
	}
	if info.Symbol == "" {
		info.Symbol = node.Get("Legs.0.Symbol").String()
	}
	switch {
	case node.Get("Type").String() == groupTypeOCO && node.Get("Orders").IsArray():
		info.Kind = broker.KindOCO
	case len(node.Get("OSOs").Array()) > 0:
		info.Kind = broker.KindBracket
	default:
		info.Kind = broker.KindSingle
	}
	switch node.Get("OrderType").String() {
	case orderTypeLimit:
		info.OrderKind = types.KindLimit
		info.Price = node.Get("LimitPrice").Float()
	case orderTypeStop, "StopLimit":
		info.OrderKind = types.KindStop
		info.Price = node.Get("StopPrice").Float()
	default:
		info.OrderKind = types.KindMarket
	}
	info.Quantity = node.Get("Quantity").Float()
	if info.Quantity == 0 {
		info.Quantity = node.Get("Legs.0.QuantityOrdered").Float()
	}
	action := node.Get("TradeAction").String()
	if action == "" {
		action = node.Get("Legs.0.BuyOrSell").String()
	}
	switch action {
	case actionBuy, "Buy":
		info.Side = "buy"
		info.OpensPosition = true
	case actionSellShort, "SellShort":
		info.Side = "sell_short"
		info.OpensPosition = true
	case actionBuyToCover, "BuyToCover":
		info.Side = "buy_to_cover"
	case actionSell, "Sell":
		info.Side = "sell"
	}

	// Group containers have no status; their member orders do.
	rawStatus := node.Get("Status").String()
	if rawStatus == "" && info.Kind == broker.KindOCO {
		info.Status = types.StatusWorking
		return info, nil
	}
	status, err := Statuses.Map(rawStatus)
	info.Status = status
	return info, err
}

// Children returns OSO groups of a bracket parent or member orders of a
// group node.
func (a *Adapter) Children(node gjson.Result) []gjson.Result {
	if orders := node.Get("Orders"); orders.IsArray() {
		return orders.Array()
	}
	return node.Get("OSOs").Array()
}

// Fills aggregates the per-leg execution fields into one fill activity.
func (a *Adapter) Fills(node gjson.Result) []broker.Fill {
	var fill broker.Fill
	for _, leg := range node.Get("Legs").Array() {
		qty := leg.Get("ExecQuantity").Float()
		if qty <= 0 {
			continue
		}
		if fill.Time.IsZero() {
			if t, err := time.Parse(time.RFC3339, leg.Get("ExecutionTime").String()); err == nil {
				fill.Time = t
			}
		}
		fill.Legs = append(fill.Legs, broker.FillLeg{
			Quantity: qty,
			Price:    leg.Get("ExecutionPrice").Float(),
		})
	}
	if len(fill.Legs) == 0 {
		return nil
	}
	if fill.Time.IsZero() {
		if t, err := time.Parse(time.RFC3339, node.Get("ClosedDateTime").String()); err == nil {
			fill.Time = t
		}
	}
	return []broker.Fill{fill}
}

// Prospective reads the exit prices from the first untriggered OSO group.
func (a *Adapter) Prospective(node gjson.Result) (broker.ProspectiveExits, bool) {
	var pe broker.ProspectiveExits
	found := false
	for _, group := range node.Get("OSOs").Array() {
		if group.Get("Type").String() != groupTypeOCO {
			continue
		}
		for _, child := range group.Get("Orders").Array() {
			switch child.Get("OrderType").String() {
			case orderTypeLimit:
				pe.Limit = child.Get("LimitPrice").Float()
				found = true
			case orderTypeStop, "StopLimit":
				pe.Stop = child.Get("StopPrice").Float()
				found = true
			}
		}
		break
	}
	return pe, found
}
