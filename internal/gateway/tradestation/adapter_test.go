package tradestation

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/marketclock"
	"traderail/internal/reconcile"
	"traderail/internal/types"
)

func bracketIntent() types.OrderIntent {
	return types.OrderIntent{
		Symbol:   "SPY",
		Side:     types.SideLong,
		Quantity: 50,
		Entry:    types.EntrySpec{Kind: types.KindMarket},
		Targets:  []types.ProfitTarget{{Quantity: 50, Price: 452}},
		StopLoss: 447.5,
	}
}

func TestBuildEntryWithBracket(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildEntryWithBracket(bracketIntent())
	require.NoError(t, err)
	require.NotEmpty(t, p.ClientID)

	body := gjson.ParseBytes(p.Body)
	assert.Equal(t, "SPY", body.Get("Symbol").String())
	assert.Equal(t, "50", body.Get("Quantity").String())
	assert.Equal(t, "BUY", body.Get("TradeAction").String())
	assert.Equal(t, "Market", body.Get("OrderType").String())
	assert.Equal(t, "DAY", body.Get("TimeInForce.Duration").String())

	osos := body.Get("OSOs").Array()
	require.Len(t, osos, 1)
	assert.Equal(t, "OCO", osos[0].Get("Type").String())
	orders := osos[0].Get("Orders").Array()
	require.Len(t, orders, 2)
	assert.Equal(t, "452", orders[0].Get("LimitPrice").String())
	assert.Equal(t, "447.5", orders[1].Get("StopPrice").String())
	assert.Equal(t, "SELL", orders[0].Get("TradeAction").String())
}

func TestBuildOcoExitShortPosition(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildOcoExit("QQQ", types.SideShort, 30, 370, 378)
	require.NoError(t, err)

	body := gjson.ParseBytes(p.Body)
	assert.Equal(t, "OCO", body.Get("Type").String())
	orders := body.Get("Orders").Array()
	require.Len(t, orders, 2)
	assert.Equal(t, "BUYTOCOVER", orders[0].Get("TradeAction").String())
	assert.Equal(t, "370", orders[0].Get("LimitPrice").String())
	assert.Equal(t, "378", orders[1].Get("StopPrice").String())
}

func TestBuildMultiTargetExit(t *testing.T) {
	a := NewAdapter()
	intent := bracketIntent()
	intent.Targets = []types.ProfitTarget{{Quantity: 30, Price: 451}, {Quantity: 20, Price: 453}}
	p, err := a.BuildMultiTargetExit(intent)
	require.NoError(t, err)
	assert.Len(t, gjson.GetBytes(p.Body, "OSOs").Array(), 2)
}

func TestDescribeBracketParent(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{
		"OrderID": "286234", "Status": "ACK", "OrderType": "Market",
		"Legs": [{"Symbol":"SPY","QuantityOrdered":50,"BuyOrSell":"Buy"}],
		"OSOs": [{"Type":"OCO","Orders":[
			{"OrderType":"Limit","LimitPrice":"452","Status":"ACK"},
			{"OrderType":"StopMarket","StopPrice":"447.5","Status":"ACK"}
		]}]}`)
	info, err := a.Describe(node)
	require.NoError(t, err)
	assert.Equal(t, broker.KindBracket, info.Kind)
	assert.Equal(t, types.StatusWorking, info.Status)
	assert.Equal(t, "SPY", info.Symbol)
	assert.Equal(t, float64(50), info.Quantity)
	assert.True(t, info.OpensPosition)

	pe, ok := a.Prospective(node)
	require.True(t, ok)
	assert.Equal(t, float64(452), pe.Limit)
	assert.Equal(t, float64(447.5), pe.Stop)
}

func TestDescribeGroupWithoutStatus(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{"Type":"OCO","Orders":[{"OrderID":"1"},{"OrderID":"2"}]}`)
	info, err := a.Describe(node)
	require.NoError(t, err)
	assert.Equal(t, broker.KindOCO, info.Kind)
	assert.Equal(t, types.StatusWorking, info.Status)
	assert.Len(t, a.Children(node), 2)
}

func TestFillsAggregatesLegs(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{
		"OrderID":"9","Status":"FLL","OrderType":"Market",
		"Legs":[
			{"Symbol":"SPY","ExecQuantity":"100","ExecutionPrice":"10.00","ExecutionTime":"2026-08-28T13:31:02Z","BuyOrSell":"Buy"},
			{"Symbol":"SPY","ExecQuantity":"50","ExecutionPrice":"10.02","ExecutionTime":"2026-08-28T13:31:02Z","BuyOrSell":"Buy"}
		]}`)
	fills := a.Fills(node)
	require.Len(t, fills, 1)
	require.Len(t, fills[0].Legs, 2)
	assert.Equal(t, float64(50), fills[0].Legs[1].Quantity)
	assert.Equal(t, float64(10.02), fills[0].Legs[1].Price)
}

// A filled bracket parent with its OCO exits still working must come back
// out of the reconciler as the pair the intent asked for.
func TestBracketLifecycleYieldsExitPair(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildEntryWithBracket(bracketIntent())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(p.Body, &doc))
	doc["OrderID"] = "2001"
	doc["Status"] = "FLL"
	group := doc["OSOs"].([]any)[0].(map[string]any)
	for i, raw := range group["Orders"].([]any) {
		order := raw.(map[string]any)
		order["OrderID"] = fmt.Sprintf("%d", 2002+i)
		order["Status"] = "ACK"
	}
	echo, err := json.Marshal(doc)
	require.NoError(t, err)

	clock, err := marketclock.New("America/New_York", "09:30")
	require.NoError(t, err)
	res := reconcile.New(a, clock).Parse([]gjson.Result{gjson.ParseBytes(echo)},
		time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC))

	require.Len(t, res.Pairs["SPY"], 1)
	pair := res.Pairs["SPY"][0]
	assert.Equal(t, types.PairSourceOTO, pair.Source)
	assert.Equal(t, "2001", pair.ParentID)
	require.NotNil(t, pair.Stop)
	require.NotNil(t, pair.Limit)
	assert.Equal(t, float64(447.5), pair.Stop.Price)
	assert.Equal(t, float64(452), pair.Limit.Price)
	assert.Empty(t, res.Entries["SPY"])
}

func TestStatusTableTotality(t *testing.T) {
	for raw, want := range Statuses.Entries {
		got, err := Statuses.Map(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := Statuses.Map("BRO")
	var unknown *broker.UnknownStatusError
	assert.ErrorAs(t, err, &unknown)
}
