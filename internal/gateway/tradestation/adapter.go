// Package tradestation implements the TradeStation gateway. Brackets are a
// parent order with a sibling OSOs array tagged OCO; statuses are
// three-letter codes.
package tradestation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

const Name = "tradestation"

// Compile-time interface check.
var _ broker.Adapter = (*Adapter)(nil)

type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

// BuildEntryWithBracket attaches one OCO group of exits to the entry order.
func (a *Adapter) BuildEntryWithBracket(intent types.OrderIntent) (broker.Payload, error) {
	if err := broker.ValidateIntent(intent); err != nil {
		return broker.Payload{}, err
	}
	if intent.StopLoss <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: bracket requires a stop-loss price", broker.ErrUnsupportedOrderKind)
	}
	target := intent.FirstTarget()
	if target <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: bracket requires a profit target", broker.ErrUnsupportedOrderKind)
	}
	entry := a.entryOrder(intent)
	entry.OSOs = []wireOSO{
		a.ocoGroup(intent.Symbol, closingAction(intent.Side), intent.Quantity, target, intent.StopLoss),
	}
	return marshalPayload(entry)
}

// BuildOcoExit produces a standalone OCO order group.
func (a *Adapter) BuildOcoExit(symbol string, side types.Side, qty, targetPrice, stopPrice float64) (broker.Payload, error) {
	if qty <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, qty)
	}
	if targetPrice <= 0 || stopPrice <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: oco exit requires target and stop prices", broker.ErrUnsupportedOrderKind)
	}
	group := a.ocoGroup(symbol, closingAction(side), qty, targetPrice, stopPrice)
	body, err := json.Marshal(group)
	if err != nil {
		return broker.Payload{}, fmt.Errorf("tradestation: encoding order group failed: %w", err)
	}
	return broker.Payload{Body: body, ClientID: uuid.NewString()}, nil
}

// BuildSingleOrder produces a plain order with no OSOs.
func (a *Adapter) BuildSingleOrder(spec broker.SingleSpec) (broker.Payload, error) {
	if spec.Quantity <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, spec.Quantity)
	}
	order := wireOrder{
		Symbol:      spec.Symbol,
		Quantity:    formatQty(spec.Quantity),
		TradeAction: actionFor(spec.Side, spec.OpensPosition),
		TimeInForce: wireTIF{Duration: defaultDuration},
		Route:       defaultRoute,
	}
	switch spec.Kind {
	case types.KindMarket:
		order.OrderType = orderTypeMarket
	case types.KindLimit:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: limit order requires a price", broker.ErrUnsupportedOrderKind)
		}
		order.OrderType = orderTypeLimit
		order.LimitPrice = formatPrice(spec.Price)
	case types.KindStop:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: stop order requires a price", broker.ErrUnsupportedOrderKind)
		}
		order.OrderType = orderTypeStop
		order.StopPrice = formatPrice(spec.Price)
	default:
		return broker.Payload{}, fmt.Errorf("%w: %q", broker.ErrUnsupportedOrderKind, spec.Kind)
	}
	return marshalPayload(order)
}

// BuildMultiTargetExit attaches one OCO group per target tranche.
func (a *Adapter) BuildMultiTargetExit(intent types.OrderIntent) (broker.Payload, error) {
	if err := broker.ValidateIntent(intent); err != nil {
		return broker.Payload{}, err
	}
	if err := broker.ValidateAllocation(intent); err != nil {
		return broker.Payload{}, err
	}
	if intent.StopLoss <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: multi-target exit requires a stop-loss price", broker.ErrUnsupportedOrderKind)
	}
	entry := a.entryOrder(intent)
	for _, t := range intent.Targets {
		entry.OSOs = append(entry.OSOs,
			a.ocoGroup(intent.Symbol, closingAction(intent.Side), t.Quantity, t.Price, intent.StopLoss))
	}
	return marshalPayload(entry)
}

func (a *Adapter) entryOrder(intent types.OrderIntent) wireOrder {
	order := wireOrder{
		Symbol:      intent.Symbol,
		Quantity:    formatQty(intent.Quantity),
		TradeAction: openingAction(intent.Side),
		TimeInForce: wireTIF{Duration: defaultDuration},
		Route:       defaultRoute,
	}
	switch intent.Entry.Kind {
	case types.KindMarket:
		order.OrderType = orderTypeMarket
	case types.KindLimit:
		order.OrderType = orderTypeLimit
		order.LimitPrice = formatPrice(intent.Entry.Price)
	case types.KindStop:
		order.OrderType = orderTypeStop
		order.StopPrice = formatPrice(intent.Entry.Price)
	}
	return order
}

func (a *Adapter) ocoGroup(symbol, action string, qty, targetPrice, stopPrice float64) wireOSO {
	return wireOSO{
		Type: groupTypeOCO,
		Orders: []wireOrder{
			{
				Symbol:      symbol,
				Quantity:    formatQty(qty),
				OrderType:   orderTypeLimit,
				LimitPrice:  formatPrice(targetPrice),
				TradeAction: action,
				TimeInForce: wireTIF{Duration: defaultDuration},
				Route:       defaultRoute,
			},
			{
				Symbol:      symbol,
				Quantity:    formatQty(qty),
				OrderType:   orderTypeStop,
				StopPrice:   formatPrice(stopPrice),
				TradeAction: action,
				TimeInForce: wireTIF{Duration: defaultDuration},
				Route:       defaultRoute,
			},
		},
	}
}

func openingAction(side types.Side) string {
	if side == types.SideShort {
		return actionSellShort
	}
	return actionBuy
}

func closingAction(side types.Side) string {
	if side == types.SideShort {
		return actionBuyToCover
	}
	return actionSell
}

func actionFor(side types.Side, opens bool) string {
	if opens {
		return openingAction(side)
	}
	return closingAction(side)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func marshalPayload(order wireOrder) (broker.Payload, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return broker.Payload{}, fmt.Errorf("tradestation: encoding order failed: %w", err)
	}
	return broker.Payload{Body: body, ClientID: uuid.NewString()}, nil
}
