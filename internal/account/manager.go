package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"traderail/internal/gateway/broker"
	"traderail/internal/logger"
	"traderail/internal/schema"
	"traderail/internal/types"
)

// ErrReplaceInFlight rejects a second replace for an order whose first
// replace has not resolved yet. Stacked replaces race at the broker and the
// loser cancels the winner's replacement.
var ErrReplaceInFlight = errors.New("replace already in flight for this order")

// Manager routes order mutations to the owning gateway, validating every
// outbound payload against the broker's schema first.
type Manager struct {
	gateways map[string]broker.Gateway
	schemas  *schema.Registry

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewManager builds a manager over the enabled gateways. schemas may be nil;
// payload validation is then skipped.
func NewManager(gateways map[string]broker.Gateway, schemas *schema.Registry) *Manager {
	return &Manager{
		gateways: gateways,
		schemas:  schemas,
		inflight: make(map[string]struct{}),
	}
}

func (m *Manager) gateway(brokerName string) (broker.Gateway, error) {
	gw, ok := m.gateways[brokerName]
	if !ok {
		return broker.Gateway{}, fmt.Errorf("unknown broker %q", brokerName)
	}
	return gw, nil
}

func (m *Manager) submit(ctx context.Context, brokerName string, gw broker.Gateway, p broker.Payload, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if m.schemas != nil {
		if err := m.schemas.Validate(brokerName, p.Body); err != nil {
			return "", err
		}
	}
	id, err := gw.Client.PlaceOrder(ctx, p)
	if err != nil {
		return "", err
	}
	logger.Infof("placed %s order %s (client tag %s)", brokerName, id, p.ClientID)
	return id, nil
}

// PlaceEntry submits an entry-with-bracket for the intent.
func (m *Manager) PlaceEntry(ctx context.Context, brokerName string, intent types.OrderIntent) (string, error) {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return "", err
	}
	p, err := gw.Adapter.BuildEntryWithBracket(intent)
	return m.submit(ctx, brokerName, gw, p, err)
}

// PlaceMultiTarget submits an entry fanning out into per-tranche exits.
func (m *Manager) PlaceMultiTarget(ctx context.Context, brokerName string, intent types.OrderIntent) (string, error) {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return "", err
	}
	p, err := gw.Adapter.BuildMultiTargetExit(intent)
	return m.submit(ctx, brokerName, gw, p, err)
}

// PlaceOcoExit submits a standalone exit pair protecting an open position.
func (m *Manager) PlaceOcoExit(ctx context.Context, brokerName, symbol string, side types.Side, qty, target, stop float64) (string, error) {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return "", err
	}
	p, err := gw.Adapter.BuildOcoExit(symbol, side, qty, target, stop)
	return m.submit(ctx, brokerName, gw, p, err)
}

// PlaceSingle submits an unstructured order.
func (m *Manager) PlaceSingle(ctx context.Context, brokerName string, spec broker.SingleSpec) (string, error) {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return "", err
	}
	p, err := gw.Adapter.BuildSingleOrder(spec)
	return m.submit(ctx, brokerName, gw, p, err)
}

// Replace swaps price/quantity on a working order. At most one replace per
// order is in flight at a time; concurrent attempts get ErrReplaceInFlight.
func (m *Manager) Replace(ctx context.Context, brokerName, orderID string, spec broker.SingleSpec) (string, error) {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return "", err
	}
	key := brokerName + "/" + orderID
	m.mu.Lock()
	if _, busy := m.inflight[key]; busy {
		m.mu.Unlock()
		return "", ErrReplaceInFlight
	}
	m.inflight[key] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
	}()

	p, err := gw.Adapter.BuildSingleOrder(spec)
	if err != nil {
		return "", err
	}
	if m.schemas != nil {
		if err := m.schemas.Validate(brokerName, p.Body); err != nil {
			return "", err
		}
	}
	newID, err := gw.Client.ReplaceOrder(ctx, orderID, p)
	if err != nil {
		return "", err
	}
	logger.Infof("replaced %s order %s with %s", brokerName, orderID, newID)
	return newID, nil
}

// Cancel cancels a working order.
func (m *Manager) Cancel(ctx context.Context, brokerName, orderID string) error {
	gw, err := m.gateway(brokerName)
	if err != nil {
		return err
	}
	if err := gw.Client.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	logger.Infof("canceled %s order %s", brokerName, orderID)
	return nil
}
