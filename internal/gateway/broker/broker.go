// Package broker defines the contract every brokerage gateway implements:
// building wire payloads from order intents and classifying raw order nodes
// back into the canonical model. Nothing outside a gateway package may
// understand a specific broker's wire shape.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"

	"traderail/internal/types"
)

// Payload is an outbound wire body plus the client order tag stamped on it.
type Payload struct {
	Body     json.RawMessage `json:"body"`
	ClientID string          `json:"client_id"`
}

// SingleSpec describes a standalone market/limit/stop order with no children.
type SingleSpec struct {
	Symbol        string
	Kind          types.OrderKind
	Quantity      float64
	Price         float64
	Side          types.Side
	OpensPosition bool
}

// Adapter translates order intents into one broker's wire format and exposes
// the classification callbacks the reconciler walks raw responses with.
// Adapters are pure: no transport, no shared state.
type Adapter interface {
	Classifier

	// Name returns the broker identifier (e.g. "schwab", "tradier").
	Name() string

	// BuildEntryWithBracket produces the broker's nesting of "entry order
	// that, once filled, spawns an OCO stop/limit exit".
	BuildEntryWithBracket(intent types.OrderIntent) (Payload, error)

	// BuildOcoExit produces a standalone OCO pair managing an open position.
	// side is the direction of the position being protected.
	BuildOcoExit(symbol string, side types.Side, qty, targetPrice, stopPrice float64) (Payload, error)

	// BuildSingleOrder produces an unstructured market/limit/stop order.
	BuildSingleOrder(spec SingleSpec) (Payload, error)

	// BuildMultiTargetExit produces one entry leg fanning out into one OCO
	// pair per target tranche. Tranche quantities must sum to the entry
	// quantity; otherwise ErrInvalidTargetAllocation.
	BuildMultiTargetExit(intent types.OrderIntent) (Payload, error)
}

// Client is the transport half of a gateway: the REST calls the aggregator
// and fetcher sequence. Implementations wrap failures in *NetworkError.
type Client interface {
	// ListOrders returns the raw top-level order nodes entered in
	// [from, to). A result length equal to limit signals possible
	// truncation.
	ListOrders(ctx context.Context, from, to time.Time, limit int) ([]gjson.Result, error)

	// PlaceOrder submits a payload and returns the broker-assigned order id.
	PlaceOrder(ctx context.Context, p Payload) (string, error)

	// ReplaceOrder swaps price/quantity on a working order; returns the id
	// of the replacing order.
	ReplaceOrder(ctx context.Context, orderID string, p Payload) (string, error)

	// CancelOrder cancels a working order.
	CancelOrder(ctx context.Context, orderID string) error

	// Account returns balances and positions plus the raw payload.
	Account(ctx context.Context) (AccountInfo, error)
}

// Gateway bundles the pure adapter with its transport client.
type Gateway struct {
	Adapter Adapter
	Client  Client
}

// AccountInfo is the normalized result of the account-info call.
type AccountInfo struct {
	Balance   float64
	Positions []types.Position
	Raw       json.RawMessage
}

// NodeKind classifies a raw order node's structural role.
type NodeKind int

const (
	KindSingle NodeKind = iota
	KindBracket
	KindOCO
)

func (k NodeKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBracket:
		return "bracket"
	case KindOCO:
		return "oco"
	default:
		return "unknown"
	}
}

// NodeInfo is the broker-agnostic description of one raw order node. For
// leaf nodes (plain orders) the leg fields carry the order's own kind, side,
// price and quantity.
type NodeInfo struct {
	ID            string
	Symbol        string
	Kind          NodeKind
	Status        types.OrderStatus
	OrderKind     types.OrderKind
	Side          string
	Quantity      float64
	Price         float64
	OpensPosition bool
}

// FillLeg is one execution leg within a fill activity.
type FillLeg struct {
	Quantity float64
	Price    float64
}

// Fill is one fill activity: a timestamp plus its execution legs.
type Fill struct {
	Time time.Time
	Legs []FillLeg
}

// ProspectiveExits carries the advisory stop/limit prices read from a
// not-yet-triggered child exit group of a working bracket parent.
type ProspectiveExits struct {
	Stop  float64
	Limit float64
}

// Classifier is the set of callbacks the reconciler uses to walk a raw
// order tree without knowing its wire shape.
type Classifier interface {
	// Describe classifies a node and maps its broker status onto the
	// canonical enum. On an unknown status it returns the node described
	// as Working together with an *UnknownStatusError; callers record the
	// error and keep the node.
	Describe(node gjson.Result) (NodeInfo, error)

	// Children returns the node's direct child subtrees.
	Children(node gjson.Result) []gjson.Result

	// Fills returns the node's own fill activities.
	Fills(node gjson.Result) []Fill

	// Prospective returns the stop/limit prices of an untriggered child
	// exit group, when the payload carries one.
	Prospective(node gjson.Result) (ProspectiveExits, bool)
}
