package types

import "strings"

// OrderStatus is the canonical order state every broker vocabulary maps onto.
type OrderStatus string

const (
	StatusWorking  OrderStatus = "working"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
	StatusRejected OrderStatus = "rejected"
	StatusReplaced OrderStatus = "replaced"
	StatusExpired  OrderStatus = "expired"
)

// AllStatuses lists the six canonical statuses.
var AllStatuses = []OrderStatus{
	StatusWorking, StatusFilled, StatusCanceled,
	StatusRejected, StatusReplaced, StatusExpired,
}

// Terminal reports whether the status is a final state. Working is the only
// non-terminal status.
func (s OrderStatus) Terminal() bool {
	return s != StatusWorking
}

func (s OrderStatus) String() string { return string(s) }

// ParseStatus normalizes a canonical status string. Returns false for
// anything outside the six canonical values.
func ParseStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusWorking:
		return StatusWorking, true
	case StatusFilled:
		return StatusFilled, true
	case StatusCanceled:
		return StatusCanceled, true
	case StatusRejected:
		return StatusRejected, true
	case StatusReplaced:
		return StatusReplaced, true
	case StatusExpired:
		return StatusExpired, true
	default:
		return "", false
	}
}
