package schwab

// Outbound wire structures. Schwab expresses nesting through
// orderStrategyType plus an explicit childOrderStrategies array: a TRIGGER
// parent fires its children on fill, an OCO parent links its children so
// one fill cancels the rest.

type wireInstrument struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType"`
}

type wireLeg struct {
	Instruction string         `json:"instruction"`
	Quantity    float64        `json:"quantity"`
	Instrument  wireInstrument `json:"instrument"`
}

type wireOrder struct {
	Session              string      `json:"session,omitempty"`
	Duration             string      `json:"duration,omitempty"`
	OrderType            string      `json:"orderType,omitempty"`
	OrderStrategyType    string      `json:"orderStrategyType"`
	Price                string      `json:"price,omitempty"`
	StopPrice            string      `json:"stopPrice,omitempty"`
	OrderLegCollection   []wireLeg   `json:"orderLegCollection,omitempty"`
	ChildOrderStrategies []wireOrder `json:"childOrderStrategies,omitempty"`
}

const (
	strategySingle  = "SINGLE"
	strategyTrigger = "TRIGGER"
	strategyOCO     = "OCO"

	orderTypeMarket = "MARKET"
	orderTypeLimit  = "LIMIT"
	orderTypeStop   = "STOP"

	instructionBuy        = "BUY"
	instructionSell       = "SELL"
	instructionSellShort  = "SELL_SHORT"
	instructionBuyToCover = "BUY_TO_COVER"
)
