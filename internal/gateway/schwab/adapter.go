// Package schwab implements the Schwab gateway. Schwab nests bracket
// structure as a TRIGGER parent whose childOrderStrategies carry an OCO
// group of exit legs.
package schwab

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

const Name = "schwab"

// Compile-time interface check.
var _ broker.Adapter = (*Adapter)(nil)

// Adapter is pure: it only translates between intents and Schwab JSON.
type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

// BuildEntryWithBracket produces a TRIGGER entry whose fill activates one
// child OCO group holding the stop and limit exits.
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
	entry.OrderStrategyType = strategyTrigger
	entry.ChildOrderStrategies = []wireOrder{
		a.ocoGroup(intent.Symbol, closingInstruction(intent.Side), intent.Quantity, target, intent.StopLoss),
	}
	return marshalPayload(entry)
}

// BuildOcoExit produces a standalone OCO group protecting an open position.
func (a *Adapter) BuildOcoExit(symbol string, side types.Side, qty, targetPrice, stopPrice float64) (broker.Payload, error) {
	if qty <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, qty)
	}
	if targetPrice <= 0 || stopPrice <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: oco exit requires target and stop prices", broker.ErrUnsupportedOrderKind)
	}
	return marshalPayload(a.ocoGroup(symbol, closingInstruction(side), qty, targetPrice, stopPrice))
}

// BuildSingleOrder produces an unstructured SINGLE order.
func (a *Adapter) BuildSingleOrder(spec broker.SingleSpec) (broker.Payload, error) {
	if spec.Quantity <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, spec.Quantity)
	}
	order := wireOrder{
		Session:           "NORMAL",
		Duration:          "DAY",
		OrderStrategyType: strategySingle,
		OrderLegCollection: []wireLeg{{
			Instruction: instructionFor(spec.Side, spec.OpensPosition),
			Quantity:    spec.Quantity,
			Instrument:  wireInstrument{Symbol: spec.Symbol, AssetType: "EQUITY"},
		}},
	}
	switch spec.Kind {
	case types.KindMarket:
		order.OrderType = orderTypeMarket
	case types.KindLimit:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: limit order requires a price", broker.ErrUnsupportedOrderKind)
		}
		order.OrderType = orderTypeLimit
		order.Price = formatPrice(spec.Price)
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

// BuildMultiTargetExit fans the entry out into one OCO pair per target
// tranche, all triggered by the entry fill.
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
	entry.OrderStrategyType = strategyTrigger
	for _, t := range intent.Targets {
		entry.ChildOrderStrategies = append(entry.ChildOrderStrategies,
			a.ocoGroup(intent.Symbol, closingInstruction(intent.Side), t.Quantity, t.Price, intent.StopLoss))
	}
	return marshalPayload(entry)
}

func (a *Adapter) entryOrder(intent types.OrderIntent) wireOrder {
	order := wireOrder{
		Session:  "NORMAL",
		Duration: "DAY",
		OrderLegCollection: []wireLeg{{
			Instruction: openingInstruction(intent.Side),
			Quantity:    intent.Quantity,
			Instrument:  wireInstrument{Symbol: intent.Symbol, AssetType: "EQUITY"},
		}},
	}
	switch intent.Entry.Kind {
	case types.KindMarket:
		order.OrderType = orderTypeMarket
	case types.KindLimit:
		order.OrderType = orderTypeLimit
		order.Price = formatPrice(intent.Entry.Price)
	case types.KindStop:
		order.OrderType = orderTypeStop
		order.StopPrice = formatPrice(intent.Entry.Price)
	}
	return order
}

func (a *Adapter) ocoGroup(symbol, instruction string, qty, targetPrice, stopPrice float64) wireOrder {
	return wireOrder{
		OrderStrategyType: strategyOCO,
		ChildOrderStrategies: []wireOrder{
			{
				Session:           "NORMAL",
				Duration:          "DAY",
				OrderType:         orderTypeLimit,
				OrderStrategyType: strategySingle,
				Price:             formatPrice(targetPrice),
				OrderLegCollection: []wireLeg{{
					Instruction: instruction,
					Quantity:    qty,
					Instrument:  wireInstrument{Symbol: symbol, AssetType: "EQUITY"},
				}},
			},
			{
				Session:           "NORMAL",
				Duration:          "DAY",
				OrderType:         orderTypeStop,
				OrderStrategyType: strategySingle,
				StopPrice:         formatPrice(stopPrice),
				OrderLegCollection: []wireLeg{{
					Instruction: instruction,
					Quantity:    qty,
					Instrument:  wireInstrument{Symbol: symbol, AssetType: "EQUITY"},
				}},
			},
		},
	}
}

func openingInstruction(side types.Side) string {
	if side == types.SideShort {
		return instructionSellShort
	}
	return instructionBuy
}

func closingInstruction(side types.Side) string {
	if side == types.SideShort {
		return instructionBuyToCover
	}
	return instructionSell
}

func instructionFor(side types.Side, opens bool) string {
	if opens {
		return openingInstruction(side)
	}
	return closingInstruction(side)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func marshalPayload(order wireOrder) (broker.Payload, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return broker.Payload{}, fmt.Errorf("schwab: encoding order failed: %w", err)
	}
	return broker.Payload{Body: body, ClientID: uuid.NewString()}, nil
}
