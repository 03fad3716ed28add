package tradier

// Outbound wire structures. Tradier tags every ticket with a class:
// "equity" for a plain order, "oco" for a linked exit pair, "otoco" for an
// entry whose fill activates its oco leg groups.

type wireOrder struct {
	Class    string      `json:"class"`
	Symbol   string      `json:"symbol,omitempty"`
	Duration string      `json:"duration,omitempty"`
	Type     string      `json:"type,omitempty"`
	Side     string      `json:"side,omitempty"`
	Quantity float64     `json:"quantity,omitempty"`
	Price    float64     `json:"price,omitempty"`
	Stop     float64     `json:"stop,omitempty"`
	Tag      string      `json:"tag,omitempty"`
	Legs     []wireOrder `json:"leg,omitempty"`
}

const (
	classEquity = "equity"
	classOCO    = "oco"
	classOTOCO  = "otoco"

	typeMarket = "market"
	typeLimit  = "limit"
	typeStop   = "stop"

	sideBuy        = "buy"
	sideSell       = "sell"
	sideSellShort  = "sell_short"
	sideBuyToCover = "buy_to_cover"

	defaultDuration = "day"
)
