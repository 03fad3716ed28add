package tradier

import (
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

// Statuses maps Tradier's lowercase vocabulary onto the canonical enum.
var Statuses = broker.StatusTable{
	Broker: Name,
	Entries: map[string]types.OrderStatus{
		"open":             types.StatusWorking,
		"pending":          types.StatusWorking,
		"partially_filled": types.StatusWorking,
		"submitted":        types.StatusWorking,
		"calculated":       types.StatusWorking,
		"held":             types.StatusWorking,
		"filled":           types.StatusFilled,
		"canceled":         types.StatusCanceled,
		"rejected":         types.StatusRejected,
		"error":            types.StatusRejected,
		"replaced":         types.StatusReplaced,
		"expired":          types.StatusExpired,
	},
}

// Describe classifies one raw node by its class tag. An otoco ticket's own
// entry attributes live on its first leg.
func (a *Adapter) Describe(node gjson.Result) (broker.NodeInfo, error) {
	info := broker.NodeInfo{
		ID:     node.Get("id").String(),
		Symbol: node.Get("symbol").String(),
	}
	attrs := node
	switch node.Get("class").String() {
	case classOTOCO:
		info.Kind = broker.KindBracket
		if entry := node.Get("leg.0"); entry.Exists() {
			attrs = entry
			if info.Symbol == "" {
				info.Symbol = entry.Get("symbol").String()
			}
		}
	case classOCO:
		info.Kind = broker.KindOCO
		if info.Symbol == "" {
			info.Symbol = node.Get("leg.0.symbol").String()
		}
	default:
		info.Kind = broker.KindSingle
	}
	switch attrs.Get("type").String() {
	case typeLimit:
		info.OrderKind = types.KindLimit
		info.Price = attrs.Get("price").Float()
	case typeStop:
		info.OrderKind = types.KindStop
		info.Price = attrs.Get("stop_price").Float()
		if info.Price == 0 {
			info.Price = attrs.Get("stop").Float()
		}
	default:
		info.OrderKind = types.KindMarket
	}
	info.Quantity = attrs.Get("quantity").Float()
	switch attrs.Get("side").String() {
	case sideBuy:
		info.Side = sideBuy
		info.OpensPosition = true
	case sideSellShort:
		info.Side = sideSellShort
		info.OpensPosition = true
	case sideBuyToCover:
		info.Side = sideBuyToCover
	case sideSell:
		info.Side = sideSell
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

// Children returns an otoco ticket's exit groups (every leg after the
// entry) or an oco ticket's member legs.
func (a *Adapter) Children(node gjson.Result) []gjson.Result {
	legs := node.Get("leg").Array()
	if node.Get("class").String() == classOTOCO && len(legs) > 0 {
		return legs[1:]
	}
	if node.Get("class").String() == classOCO {
		return legs
	}
	return nil
}

// Fills builds one activity from the ticket-level execution summary.
func (a *Adapter) Fills(node gjson.Result) []broker.Fill {
	qty := node.Get("exec_quantity").Float()
	if qty <= 0 {
		return nil
	}
	t, err := time.Parse(time.RFC3339, node.Get("transaction_date").String())
	if err != nil {
		return nil
	}
	return []broker.Fill{{
		Time: t,
		Legs: []broker.FillLeg{{Quantity: qty, Price: node.Get("avg_fill_price").Float()}},
	}}
}

// Prospective reads the exit prices from the first oco group of a working
// otoco ticket.
func (a *Adapter) Prospective(node gjson.Result) (broker.ProspectiveExits, bool) {
	var pe broker.ProspectiveExits
	found := false
	for _, leg := range node.Get("leg").Array() {
		if leg.Get("class").String() != classOCO {
			continue
		}
		for _, member := range leg.Get("leg").Array() {
			switch member.Get("type").String() {
			case typeLimit:
				pe.Limit = member.Get("price").Float()
				found = true
			case typeStop:
				pe.Stop = member.Get("stop_price").Float()
				if pe.Stop == 0 {
					pe.Stop = member.Get("stop").Float()
				}
				found = true
			}
		}
		break
	}
	return pe, found
}
