// Package alpaca implements the Alpaca gateway. A bracket is a single flat
// order with embedded take_profit/stop_loss sub-objects; the spawned exit
// orders come back in a legs array.
package alpaca

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

const Name = "alpaca"

// Compile-time interface check.
var _ broker.Adapter = (*Adapter)(nil)

type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

// BuildEntryWithBracket produces a bracket-class order whose exits are the
// embedded take_profit and stop_loss objects.
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
	order := a.entryOrder(intent)
	order.OrderClass = classBracket
	order.TakeProfit = &wireExit{LimitPrice: formatPrice(target)}
	order.StopLoss = &wireExit{StopPrice: formatPrice(intent.StopLoss)}
	return marshalPayload(order)
}

// BuildOcoExit produces an oco-class order protecting an open position.
// The exit side is the opposite of the position side.
func (a *Adapter) BuildOcoExit(symbol string, side types.Side, qty, targetPrice, stopPrice float64) (broker.Payload, error) {
	if qty <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, qty)
	}
	if targetPrice <= 0 || stopPrice <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: oco exit requires target and stop prices", broker.ErrUnsupportedOrderKind)
	}
	exitSide := sideSell
	intent := intentSellToClose
	if side == types.SideShort {
		exitSide = sideBuy
		intent = intentBuyToClose
	}
	order := wireOrder{
		Symbol:         symbol,
		Qty:            formatQty(qty),
		Side:           exitSide,
		Type:           typeLimit,
		TimeInForce:    defaultTIF,
		LimitPrice:     formatPrice(targetPrice),
		OrderClass:     classOCO,
		StopLoss:       &wireExit{StopPrice: formatPrice(stopPrice)},
		PositionIntent: intent,
	}
	return marshalPayload(order)
}

// BuildSingleOrder produces a plain order with no order class.
func (a *Adapter) BuildSingleOrder(spec broker.SingleSpec) (broker.Payload, error) {
	if spec.Quantity <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, spec.Quantity)
	}
	order := wireOrder{
		Symbol:         spec.Symbol,
		Qty:            formatQty(spec.Quantity),
		Side:           wireSide(spec.Side, spec.OpensPosition),
		TimeInForce:    defaultTIF,
		PositionIntent: wireIntent(spec.Side, spec.OpensPosition),
	}
	switch spec.Kind {
	case types.KindMarket:
		order.Type = typeMarket
	case types.KindLimit:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: limit order requires a price", broker.ErrUnsupportedOrderKind)
		}
		order.Type = typeLimit
		order.LimitPrice = formatPrice(spec.Price)
	case types.KindStop:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: stop order requires a price", broker.ErrUnsupportedOrderKind)
		}
		order.Type = typeStop
		order.StopPrice = formatPrice(spec.Price)
	default:
		return broker.Payload{}, fmt.Errorf("%w: %q", broker.ErrUnsupportedOrderKind, spec.Kind)
	}
	return marshalPayload(order)
}

// BuildMultiTargetExit supports a single tranche only: an Alpaca ticket
// carries exactly one take_profit object, so multi-tranche fan-out has to
// be placed as a bracket plus standalone oco tickets by the caller.
func (a *Adapter) BuildMultiTargetExit(intent types.OrderIntent) (broker.Payload, error) {
	if err := broker.ValidateIntent(intent); err != nil {
		return broker.Payload{}, err
	}
	if err := broker.ValidateAllocation(intent); err != nil {
		return broker.Payload{}, err
	}
	if len(intent.Targets) > 1 {
		return broker.Payload{}, fmt.Errorf("%w: alpaca tickets carry a single take-profit object", broker.ErrUnsupportedOrderKind)
	}
	return a.BuildEntryWithBracket(intent)
}

func (a *Adapter) entryOrder(intent types.OrderIntent) wireOrder {
	order := wireOrder{
		Symbol:         intent.Symbol,
		Qty:            formatQty(intent.Quantity),
		Side:           wireSide(intent.Side, true),
		TimeInForce:    defaultTIF,
		PositionIntent: wireIntent(intent.Side, true),
	}
	switch intent.Entry.Kind {
	case types.KindMarket:
		order.Type = typeMarket
	case types.KindLimit:
		order.Type = typeLimit
		order.LimitPrice = formatPrice(intent.Entry.Price)
	case types.KindStop:
		order.Type = typeStop
		order.StopPrice = formatPrice(intent.Entry.Price)
	}
	return order
}

func wireSide(side types.Side, opens bool) string {
	if (side == types.SideLong) == opens {
		return sideBuy
	}
	return sideSell
}

func wireIntent(side types.Side, opens bool) string {
	switch {
	case side == types.SideLong && opens:
		return intentBuyToOpen
	case side == types.SideLong && !opens:
		return intentSellToClose
	case side == types.SideShort && opens:
		return intentSellToOpen
	default:
		return intentBuyToClose
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func marshalPayload(order wireOrder) (broker.Payload, error) {
	clientID := uuid.NewString()
	order.ClientOrderID = clientID
	body, err := json.Marshal(order)
	if err != nil {
		return broker.Payload{}, fmt.Errorf("alpaca: encoding order failed: %w", err)
	}
	return broker.Payload{Body: body, ClientID: clientID}, nil
}
