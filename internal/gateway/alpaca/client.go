package alpaca

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

// Client speaks the Alpaca trading REST API. The account is implicit in the
// bearer credentials, so no account id appears in paths.
type Client struct {
	rest *rest.Client
}

func NewClient(baseURL string, tokens rest.TokenProvider, timeout time.Duration) (*Client, error) {
	rc, err := rest.NewClient(Name, baseURL, tokens, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rc}, nil
}

// SetRESTClient swaps the underlying REST client for testing.
func (c *Client) SetRESTClient(rc *rest.Client) { c.rest = rc }

// ListOrders returns the flat top-level array, nested legs included.
func (c *Client) ListOrders(ctx context.Context, from, to time.Time, limit int) ([]gjson.Result, error) {
	query := url.Values{}
	query.Set("status", "all")
	query.Set("after", from.UTC().Format(time.RFC3339))
	query.Set("until", to.UTC().Format(time.RFC3339))
	query.Set("limit", fmt.Sprintf("%d", limit))
	query.Set("nested", "true")
	raw, err := c.rest.DoRaw(ctx, "GET", "/v2/orders", query, nil)
	if err != nil {
		return nil, err
	}
	return gjson.ParseBytes(raw).Array(), nil
}

func (c *Client) PlaceOrder(ctx context.Context, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "POST", "/v2/orders", nil, p.Body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", fmt.Errorf("alpaca: place order returned no order id")
	}
	return id, nil
}

func (c *Client) ReplaceOrder(ctx context.Context, orderID string, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "PATCH", "/v2/orders/"+orderID, nil, p.Body)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(raw, "id").String(); id != "" {
		return id, nil
	}
	return orderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.rest.DoRaw(ctx, "DELETE", "/v2/orders/"+orderID, nil, nil)
	return err
}

// Account combines the account and positions endpoints. Alpaca reports
// numeric fields as strings.
func (c *Client) Account(ctx context.Context) (broker.AccountInfo, error) {
	raw, err := c.rest.DoRaw(ctx, "GET", "/v2/account", nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	info := broker.AccountInfo{
		Balance: gjson.GetBytes(raw, "equity").Float(),
		Raw:     raw,
	}
	rawPositions, err := c.rest.DoRaw(ctx, "GET", "/v2/positions", nil, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	for _, pos := range gjson.ParseBytes(rawPositions).Array() {
		qty := pos.Get("qty").Float()
		if pos.Get("side").String() == "short" && qty > 0 {
			qty = -qty
		}
		info.Positions = append(info.Positions, types.Position{
			Symbol:   pos.Get("symbol").String(),
			Quantity: qty,
			AvgPrice: pos.Get("avg_entry_price").Float(),
		})
	}
	return info, nil
}
