// Package tradier implements the Tradier gateway: flat class-tagged tickets
// where nesting is expressed through leg arrays on oco/otoco orders.
package tradier

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

const Name = "tradier"

// Compile-time interface check.
var _ broker.Adapter = (*Adapter)(nil)

type Adapter struct{}

func NewAdapter() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

// BuildEntryWithBracket produces an otoco ticket: the entry leg followed by
// one oco group holding the exits.
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
	ticket := wireOrder{
		Class:    classOTOCO,
		Duration: defaultDuration,
		Legs: []wireOrder{
			a.entryLeg(intent),
			a.ocoGroup(intent.Symbol, closingSide(intent.Side), intent.Quantity, target, intent.StopLoss),
		},
	}
	return marshalPayload(ticket)
}

// BuildOcoExit produces a standalone oco ticket.
func (a *Adapter) BuildOcoExit(symbol string, side types.Side, qty, targetPrice, stopPrice float64) (broker.Payload, error) {
	if qty <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, qty)
	}
	if targetPrice <= 0 || stopPrice <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: oco exit requires target and stop prices", broker.ErrUnsupportedOrderKind)
	}
	ticket := a.ocoGroup(symbol, closingSide(side), qty, targetPrice, stopPrice)
	ticket.Duration = defaultDuration
	return marshalPayload(ticket)
}

// BuildSingleOrder produces an equity-class ticket.
func (a *Adapter) BuildSingleOrder(spec broker.SingleSpec) (broker.Payload, error) {
	if spec.Quantity <= 0 {
		return broker.Payload{}, fmt.Errorf("%w: %v", broker.ErrInvalidQuantity, spec.Quantity)
	}
	ticket := wireOrder{
		Class:    classEquity,
		Symbol:   spec.Symbol,
		Duration: defaultDuration,
		Side:     tradeSide(spec.Side, spec.OpensPosition),
		Quantity: spec.Quantity,
	}
	switch spec.Kind {
	case types.KindMarket:
		ticket.Type = typeMarket
	case types.KindLimit:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: limit order requires a price", broker.ErrUnsupportedOrderKind)
		}
		ticket.Type = typeLimit
		ticket.Price = spec.Price
	case types.KindStop:
		if spec.Price <= 0 {
			return broker.Payload{}, fmt.Errorf("%w: stop order requires a price", broker.ErrUnsupportedOrderKind)
		}
		ticket.Type = typeStop
		ticket.Stop = spec.Price
	default:
		return broker.Payload{}, fmt.Errorf("%w: %q", broker.ErrUnsupportedOrderKind, spec.Kind)
	}
	return marshalPayload(ticket)
}

// BuildMultiTargetExit produces an otoco ticket with one oco group per
// target tranche.
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
	ticket := wireOrder{
		Class:    classOTOCO,
		Duration: defaultDuration,
		Legs:     []wireOrder{a.entryLeg(intent)},
	}
	for _, t := range intent.Targets {
		ticket.Legs = append(ticket.Legs,
			a.ocoGroup(intent.Symbol, closingSide(intent.Side), t.Quantity, t.Price, intent.StopLoss))
	}
	return marshalPayload(ticket)
}

func (a *Adapter) entryLeg(intent types.OrderIntent) wireOrder {
	leg := wireOrder{
		Class:    classEquity,
		Symbol:   intent.Symbol,
		Side:     openingSide(intent.Side),
		Quantity: intent.Quantity,
	}
	switch intent.Entry.Kind {
	case types.KindMarket:
		leg.Type = typeMarket
	case types.KindLimit:
		leg.Type = typeLimit
		leg.Price = intent.Entry.Price
	case types.KindStop:
		leg.Type = typeStop
		leg.Stop = intent.Entry.Price
	}
	return leg
}

func (a *Adapter) ocoGroup(symbol, side string, qty, targetPrice, stopPrice float64) wireOrder {
	return wireOrder{
		Class: classOCO,
		Legs: []wireOrder{
			{Class: classEquity, Symbol: symbol, Type: typeLimit, Side: side, Quantity: qty, Price: targetPrice},
			{Class: classEquity, Symbol: symbol, Type: typeStop, Side: side, Quantity: qty, Stop: stopPrice},
		},
	}
}

func openingSide(side types.Side) string {
	if side == types.SideShort {
		return sideSellShort
	}
	return sideBuy
}

func closingSide(side types.Side) string {
	if side == types.SideShort {
		return sideBuyToCover
	}
	return sideSell
}

func tradeSide(side types.Side, opens bool) string {
	if opens {
		return openingSide(side)
	}
	return closingSide(side)
}

func marshalPayload(ticket wireOrder) (broker.Payload, error) {
	clientID := uuid.NewString()
	ticket.Tag = clientID
	body, err := json.Marshal(ticket)
	if err != nil {
		return broker.Payload{}, fmt.Errorf("tradier: encoding order failed: %w", err)
	}
	return broker.Payload{Body: body, ClientID: clientID}, nil
}
