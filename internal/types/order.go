// Package types holds the broker-agnostic order, execution and account
// model every gateway adapter normalizes into.
package types

import (
	"strings"
	"time"
)

// Side is the direction of a position or intent.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the closing direction for a side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// ParseSide normalizes "long"/"short" (also accepts buy/sell aliases).
func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong, true
	case "short", "sell":
		return SideShort, true
	default:
		return "", false
	}
}

// OrderKind is the execution style of a single order leg.
type OrderKind string

const (
	KindMarket OrderKind = "market"
	KindLimit  OrderKind = "limit"
	KindStop   OrderKind = "stop"
)

// ProfitTarget is one take-profit tranche of a multi-target exit.
type ProfitTarget struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// EntrySpec describes how a position is entered. Price is required for
// limit and stop entries and ignored for market entries.
type EntrySpec struct {
	Kind  OrderKind `json:"kind"`
	Price float64   `json:"price,omitempty"`
}

// OrderIntent is the trader's abstract instruction: enter a position with a
// protective stop and one or more profit targets. Immutable; built by the
// caller and never mutated by the engine.
type OrderIntent struct {
	Symbol   string         `json:"symbol"`
	Side     Side           `json:"side"`
	Quantity float64        `json:"quantity"`
	Entry    EntrySpec      `json:"entry"`
	Targets  []ProfitTarget `json:"targets,omitempty"`
	StopLoss float64        `json:"stop_loss"`
}

// FirstTarget returns the first profit target price, or zero when none set.
func (i OrderIntent) FirstTarget() float64 {
	if len(i.Targets) == 0 {
		return 0
	}
	return i.Targets[0].Price
}

// TargetQuantity sums the quantity across all target tranches.
func (i OrderIntent) TargetQuantity() float64 {
	var total float64
	for _, t := range i.Targets {
		total += t.Quantity
	}
	return total
}

// OrderLeg is one working exit leg referenced by an ExitPair.
type OrderLeg struct {
	ID       string  `json:"id"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Side     string  `json:"side"`
}

// PairSource tags how an exit pair came into existence.
type PairSource string

const (
	// PairSourceOCO marks a standalone one-cancels-other exit managing an
	// already open position.
	PairSourceOCO PairSource = "OCO"
	// PairSourceOTO marks the live child group of a filled bracket parent.
	PairSourceOTO PairSource = "OTO"
)

// ExitPair is a linked stop-loss / take-profit pair. The reconciler only
// emits a pair when both legs exist and both are working.
type ExitPair struct {
	Symbol   string     `json:"symbol"`
	Stop     *OrderLeg  `json:"stop,omitempty"`
	Limit    *OrderLeg  `json:"limit,omitempty"`
	Source   PairSource `json:"source"`
	ParentID string     `json:"parent_id,omitempty"`
}

// EntryOrder is a still-working order that will open a position once filled.
// ProspectiveStop/ProspectiveLimit surface the prices of a not-yet-triggered
// child exit group for display only; they are advisory, not authoritative.
type EntryOrder struct {
	Symbol           string    `json:"symbol"`
	OrderID          string    `json:"order_id"`
	Kind             OrderKind `json:"kind"`
	Quantity         float64   `json:"quantity"`
	Side             string    `json:"side"`
	OpensPosition    bool      `json:"opens_position"`
	ProspectiveStop  float64   `json:"prospective_stop,omitempty"`
	ProspectiveLimit float64   `json:"prospective_limit,omitempty"`
}

// OrderExecution is one aggregated fill activity. Price is the
// quantity-weighted average across the activity's legs. Bucket is the fill
// time truncated to the minute; MinutesSinceOpen counts from market open.
type OrderExecution struct {
	Symbol           string    `json:"symbol"`
	FilledAt         time.Time `json:"filled_at"`
	Quantity         float64   `json:"quantity"`
	Price            float64   `json:"price"`
	Side             string    `json:"side"`
	ClosesPosition   bool      `json:"closes_position"`
	Bucket           time.Time `json:"bucket"`
	MinutesSinceOpen int       `json:"minutes_since_open"`
}

// Position is a broker-reported holding. Quantity is signed: positive long,
// negative short, zero flat.
type Position struct {
	Symbol   string  `json:"symbol"`
	AvgPrice float64 `json:"avg_price"`
	Quantity float64 `json:"quantity"`
}

// Flat reports whether the position has no net exposure.
func (p Position) Flat() bool { return p.Quantity == 0 }
