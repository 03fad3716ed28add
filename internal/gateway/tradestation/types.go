package tradestation

// Outbound wire structures. TradeStation expresses a bracket as a parent
// order carrying an OSOs sibling array; each OSO is a typed group whose
// Orders activate when the parent fills.

type wireTIF struct {
	Duration string `json:"Duration"`
}

type wireOrder struct {
	Symbol      string    `json:"Symbol"`
	Quantity    string    `json:"Quantity"`
	OrderType   string    `json:"OrderType"`
	LimitPrice  string    `json:"LimitPrice,omitempty"`
	StopPrice   string    `json:"StopPrice,omitempty"`
	TradeAction string    `json:"TradeAction"`
	TimeInForce wireTIF   `json:"TimeInForce"`
	Route       string    `json:"Route"`
	OSOs        []wireOSO `json:"OSOs,omitempty"`
}

type wireOSO struct {
	Type   string      `json:"Type"`
	Orders []wireOrder `json:"Orders"`
}

const (
	orderTypeMarket = "Market"
	orderTypeLimit  = "Limit"
	orderTypeStop   = "StopMarket"

	groupTypeOCO = "OCO"

	actionBuy        = "BUY"
	actionSell       = "SELL"
	actionSellShort  = "SELLSHORT"
	actionBuyToCover = "BUYTOCOVER"

	defaultRoute    = "Intelligent"
	defaultDuration = "DAY"
)
