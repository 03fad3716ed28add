package tradestation

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

// Client speaks the TradeStation brokerage REST API for one account.
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

// ListOrders returns the raw order nodes from the Orders envelope.
func (c *Client) ListOrders(ctx context.Context, from, to time.Time, limit int) ([]gjson.Result, error) {
	query := url.Values{}
	query.Set("since", from.UTC().Format(time.RFC3339))
	query.Set("until", to.UTC().Format(time.RFC3339))
	query.Set("pageSize", fmt.Sprintf("%d", limit))
	raw, err := c.rest.DoRaw(ctx, "GET", fmt.Sprintf("/accounts/%s/orders", c.accountID), query, nil)
	if err != nil {
		return nil, err
	}
	return gjson.GetBytes(raw, "Orders").Array(), nil
}

func (c *Client) PlaceOrder(ctx context.Context, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "POST", "/orderexecution/orders", nil, p.Body)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(raw, "Orders.0.OrderID").String(); id != "" {
		return id, nil
	}
	if id := gjson.GetBytes(raw, "OrderID").String(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("tradestation: place order returned no order id")
}

func (c *Client) ReplaceOrder(ctx context.Context, orderID string, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "PUT", "/orderexecution/orders/"+orderID, nil, p.Body)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(raw, "OrderID").String(); id != "" {
		return id, nil
	}
	return orderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.rest.DoRaw(ctx, "DELETE", "/orderexecution/orders/"+orderID, nil, nil)
	return err
}

// Account combines the balances and positions endpoints.
func (c *Client) Account(ctx context.Context) (broker.AccountInfo, error) {
	rawBalances, err := c.rest.DoRaw(ctx, "GET", fmt.Sprintf("/accounts/%s/balances", c.accountID), nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	info := broker.AccountInfo{
		Balance: gjson.GetBytes(rawBalances, "Balances.0.Equity").Float(),
		Raw:     rawBalances,
	}
	rawPositions, err := c.rest.DoRaw(ctx, "GET", fmt.Sprintf("/accounts/%s/positions", c.accountID), nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	for _, pos := range gjson.GetBytes(rawPositions, "Positions").Array() {
		qty := pos.Get("Quantity").Float()
		if pos.Get("LongShort").String() == "Short" && qty > 0 {
			qty = -qty
		}
		info.Positions = append(info.Positions, types.Position{
			Symbol:   pos.Get("Symbol").String(),
			Quantity: qty,
			AvgPrice: pos.Get("AveragePrice").Float(),
		})
	}
	return info, nil
}
