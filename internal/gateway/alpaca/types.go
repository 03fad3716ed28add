package alpaca

// Outbound wire structures. Alpaca expresses a bracket as one flat order
// carrying embedded take_profit / stop_loss sub-objects; responses surface
// the spawned exit orders in a legs array.

type wireExit struct {
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
}

type wireOrder struct {
	Symbol         string    `json:"symbol"`
	Qty            string    `json:"qty"`
	Side           string    `json:"side"`
	Type           string    `json:"type"`
	TimeInForce    string    `json:"time_in_force"`
	LimitPrice     string    `json:"limit_price,omitempty"`
	StopPrice      string    `json:"stop_price,omitempty"`
	OrderClass     string    `json:"order_class,omitempty"`
	TakeProfit     *wireExit `json:"take_profit,omitempty"`
	StopLoss       *wireExit `json:"stop_loss,omitempty"`
	PositionIntent string    `json:"position_intent,omitempty"`
	ClientOrderID  string    `json:"client_order_id,omitempty"`
}

const (
	classBracket = "bracket"
	classOCO     = "oco"

	typeMarket = "market"
	typeLimit  = "limit"
	typeStop   = "stop"

	sideBuy  = "buy"
	sideSell = "sell"

	intentBuyToOpen   = "buy_to_open"
	intentSellToOpen  = "sell_to_open"
	intentBuyToClose  = "buy_to_close"
	intentSellToClose = "sell_to_close"

	defaultTIF = "day"
)
