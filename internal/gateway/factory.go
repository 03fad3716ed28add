// Package gateway wires broker configurations to concrete adapter/client
// pairs.
package gateway

import (
	"fmt"
	"time"

	"traderail/internal/config"
	"traderail/internal/gateway/alpaca"
	"traderail/internal/gateway/broker"
	"traderail/internal/gateway/rest"
	"traderail/internal/gateway/schwab"
	"traderail/internal/gateway/tradestation"
	"traderail/internal/gateway/tradier"
)

// New builds the gateway for one configured broker.
func New(bc config.BrokerConfig) (broker.Gateway, error) {
	tokens := rest.StaticToken(bc.AccessToken)
	timeout := time.Duration(bc.TimeoutSeconds) * time.Second
	switch bc.Name {
	case schwab.Name:
		client, err := schwab.NewClient(bc.BaseURL, bc.AccountID, tokens, timeout)
		if err != nil {
			return broker.Gateway{}, err
		}
		return broker.Gateway{Adapter: schwab.NewAdapter(), Client: client}, nil
	case tradestation.Name:
		client, err := tradestation.NewClient(bc.BaseURL, bc.AccountID, tokens, timeout)
		if err != nil {
			return broker.Gateway{}, err
		}
		return broker.Gateway{Adapter: tradestation.NewAdapter(), Client: client}, nil
	case tradier.Name:
		client, err := tradier.NewClient(bc.BaseURL, bc.AccountID, tokens, timeout)
		if err != nil {
			return broker.Gateway{}, err
		}
		return broker.Gateway{Adapter: tradier.NewAdapter(), Client: client}, nil
	case alpaca.Name:
		client, err := alpaca.NewClient(bc.BaseURL, tokens, timeout)
		if err != nil {
			return broker.Gateway{}, err
		}
		return broker.Gateway{Adapter: alpaca.NewAdapter(), Client: client}, nil
	default:
		return broker.Gateway{}, fmt.Errorf("unsupported broker: %s", bc.Name)
	}
}

// NewAll builds gateways for every enabled broker, keyed by broker name.
func NewAll(cfg *config.Config) (map[string]broker.Gateway, error) {
	gateways := make(map[string]broker.Gateway)
	for _, bc := range cfg.EnabledBrokers() {
		gw, err := New(bc)
		if err != nil {
			return nil, fmt.Errorf("building %s gateway failed: %w", bc.Name, err)
		}
		gateways[bc.Name] = gw
	}
	return gateways, nil
}
