package schwab

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

// Client speaks the Schwab trader REST API for one account.
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

// ListOrders returns the raw top-level order nodes entered in [from, to).
func (c *Client) ListOrders(ctx context.Context, from, to time.Time, limit int) ([]gjson.Result, error) {
	query := url.Values{}
	query.Set("fromEnteredTime", from.UTC().Format(time.RFC3339))
	query.Set("toEnteredTime", to.UTC().Format(time.RFC3339))
	query.Set("maxResults", fmt.Sprintf("%d", limit))
	raw, err := c.rest.DoRaw(ctx, "GET", c.ordersPath(), query, nil)
	if err != nil {
		return nil, err
	}
	return gjson.ParseBytes(raw).Array(), nil
}

func (c *Client) PlaceOrder(ctx context.Context, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "POST", c.ordersPath(), nil, p.Body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "orderId").String()
	if id == "" {
		return "", fmt.Errorf("schwab: place order returned no order id")
	}
	return id, nil
}

func (c *Client) ReplaceOrder(ctx context.Context, orderID string, p broker.Payload) (string, error) {
	raw, err := c.rest.DoRaw(ctx, "PUT", c.ordersPath()+"/"+orderID, nil, p.Body)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(raw, "orderId").String(); id != "" {
		return id, nil
	}
	return orderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.rest.DoRaw(ctx, "DELETE", c.ordersPath()+"/"+orderID, nil, nil)
	return err
}

// Account reads balances and positions from the account endpoint.
func (c *Client) Account(ctx context.Context) (broker.AccountInfo, error) {
	query := url.Values{}
	query.Set("fields", "positions")
	raw, err := c.rest.DoRaw(ctx, "GET", "/accounts/"+c.accountID, query, nil)
	if err != nil {
		return broker.AccountInfo{}, err
	}
	account := gjson.GetBytes(raw, "securitiesAccount")
	info := broker.AccountInfo{
		Balance: account.Get("currentBalances.liquidationValue").Float(),
		Raw:     raw,
	}
	for _, pos := range account.Get("positions").Array() {
		qty := pos.Get("longQuantity").Float() - pos.Get("shortQuantity").Float()
		info.Positions = append(info.Positions, types.Position{
			Symbol:   pos.Get("instrument.symbol").String(),
			Quantity: qty,
			AvgPrice: pos.Get("averagePrice").Float(),
		})
	}
	return info, nil
}
