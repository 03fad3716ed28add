package tradier

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/gateway/rest"
	"traderail/internal/types"
)

// Compile-time interface check.
var _ broker.Client = (*Client)(nil)

// Client speaks the Tradier brokerage REST API for one account.
type Client struct {
	rest      *rest.Client
	accountID string
}

func NewClient(baseURL, accountID string, tokens rest.TokenProvider, timeout time.Duration) (*Client, error) {
	rc, err := rest.NewClient(Name, baseURL, tokens, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rc, accountID: accountID}, nil
}

// SetRESTClient swaps the underlying REST client for testing.
func (c *Client) SetRESTClient(rc *rest.Client) { c.rest = rc }

func (c *Client) ordersPath() string {
	return fmt.Sprintf("/accounts/%s/orders", c.accountID)
}

// ListOrders unwraps Tradier's orders.order envelope.
func (c *Client) ListOrders(ctx context.Context, from, to time.Time, limit int) ([]gjson.Result, error) {
	query := url.Values{}
	query.Set("start", from.UTC().Format(time.RFC3339))
	query.Set("end", to.UTC().Format(time.RFC3339))
	query.Set("limit", fmt.Sprintf("%d", limit))
	raw, err := c.rest.DoRaw(ctx, "GET", c.ordersPath(), query, nil)
	if err != nil {
		return nil, err
	}
	return gjson.GetBytes(raw, "orders.order").Array(), nil
}

func (c *Client) PlaceOrder(ctx context.Context, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "POST", c.ordersPath(), nil, p.Body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "order.id").String()
	if id == "" {
		return "", fmt.Errorf("tradier: place order returned no order id")
	}
	return id, nil
}

func (c *Client) ReplaceOrder(ctx context.Context, orderID string, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "PUT", c.ordersPath()+"/"+orderID, nil, p.Body)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(raw, "order.id").String(); id != "" {
		return id, nil
	}
	return orderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.rest.DoRaw(ctx, "DELETE", c.ordersPath()+"/"+orderID, nil, nil)
	return err
}

// Account combines the balances and positions envelopes.
func (c *Client) Account(ctx context.Context) (broker.AccountInfo, error) {
	raw, err := c.rest.DoRaw(ctx, "GET", fmt.Sprintf("/accounts/%s/balances", c.accountID), nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	info := broker.AccountInfo{
		Balance: gjson.GetBytes(raw, "balances.total_equity").Float(),
		Raw:     raw,
	}
	rawPositions, err := c.rest.DoRaw(ctx, "GET", fmt.Sprintf("/accounts/%s/positions", c.accountID), nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	for _, pos := range gjson.GetBytes(rawPositions, "positions.position").Array() {
		qty := pos.Get("quantity").Float()
		avg := 0.0
		if qty != 0 {
			cost := pos.Get("cost_basis").Float()
			avg = cost / qty
			if avg < 0 {
				avg = -avg
			}
		}
		info.Positions = append(info.Positions, types.Position{
			Symbol:   pos.Get("symbol").String(),
			Quantity: qty,
			AvgPrice: avg,
		})
	}
	return info, nil
}
