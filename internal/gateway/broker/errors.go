package broker

import (
	"errors"
	"fmt"

	"traderail/internal/types"
)

// Validation errors returned synchronously from the build methods; they gate
// whether an order is ever submitted.
var (
	ErrUnsupportedOrderKind    = errors.New("unsupported order kind")
	ErrInvalidQuantity         = errors.New("quantity must be positive")
	ErrInvalidTargetAllocation = errors.New("target quantities do not sum to entry quantity")
)

// UnknownStatusError records a broker status string absent from the
// canonical mapping. The order is conservatively treated as Working so live
// positions are never silently dropped from risk-relevant structures.
type UnknownStatusError struct {
	Broker string
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("%s: unknown order status %q", e.Broker, e.Status)
}

// NetworkError wraps a transport failure or timeout on a broker call.
type NetworkError struct {
	Broker string
	Op     string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Broker, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusTable maps one broker's status vocabulary onto the canonical enum.
// The mapping must be total over every status the broker emits; anything
// else yields Working plus an *UnknownStatusError.
type StatusTable struct {
	Broker  string
	Entries map[string]types.OrderStatus
}

// Map resolves a raw broker status.
func (t StatusTable) Map(raw string) (types.OrderStatus, error) {
	if st, ok := t.Entries[raw]; ok {
		return st, nil
	}
	return types.StatusWorking, &UnknownStatusError{Broker: t.Broker, Status: raw}
}

// ValidateIntent applies the checks shared by every adapter's build methods.
func ValidateIntent(intent types.OrderIntent) error {
	if intent.Quantity <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, intent.Quantity)
	}
	switch intent.Entry.Kind {
	case types.KindMarket:
	case types.KindLimit, types.KindStop:
		if intent.Entry.Price <= 0 {
			return fmt.Errorf("%w: %s entry requires a price", ErrUnsupportedOrderKind, intent.Entry.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOrderKind, intent.Entry.Kind)
	}
	return nil
}

// ValidateAllocation enforces that target tranche quantities sum to the
// entry quantity, within a tolerance of one millionth of a share.
func ValidateAllocation(intent types.OrderIntent) error {
	if len(intent.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidTargetAllocation)
	}
	for _, t := range intent.Targets {
		if t.Quantity <= 0 {
			return fmt.Errorf("%w: tranche quantity %v", ErrInvalidQuantity, t.Quantity)
		}
	}
	total := intent.TargetQuantity()
	diff := total - intent.Quantity
	if diff > 1e-6 || diff < -1e-6 {
		return fmt.Errorf("%w: targets %v vs entry %v", ErrInvalidTargetAllocation, total, intent.Quantity)
	}
	return nil
}
