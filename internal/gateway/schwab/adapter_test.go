package schwab

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

// decorate adds the broker-assigned fields a submitted payload comes back
// with on the list endpoint.
func decorate(body, id, status string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return "", err
	}
	m["orderId"] = id
	m["status"] = status
	out, err := json.Marshal(m)
	return string(out), err
}

func bracketIntent() types.OrderIntent {
	return types.OrderIntent{
		Symbol:   "AAPL",
		Side:     types.SideLong,
		Quantity: 100,
		Entry:    types.EntrySpec{Kind: types.KindLimit, Price: 189.50},
		Targets:  []types.ProfitTarget{{Quantity: 100, Price: 195}},
		StopLoss: 186,
	}
}

func TestBuildEntryWithBracket(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildEntryWithBracket(bracketIntent())
	require.NoError(t, err)
	require.NotEmpty(t, p.ClientID)

	body := gjson.ParseBytes(p.Body)
	assert.Equal(t, "TRIGGER", body.Get("orderStrategyType").String())
	assert.Equal(t, "LIMIT", body.Get("orderType").String())
	assert.Equal(t, "189.5", body.Get("price").String())
	assert.Equal(t, "BUY", body.Get("orderLegCollection.0.instruction").String())
	assert.Equal(t, "AAPL", body.Get("orderLegCollection.0.instrument.symbol").String())

	oco := body.Get("childOrderStrategies.0")
	assert.Equal(t, "OCO", oco.Get("orderStrategyType").String())
	legs := oco.Get("childOrderStrategies").Array()
	require.Len(t, legs, 2)
	assert.Equal(t, "195", legs[0].Get("price").String())
	assert.Equal(t, "186", legs[1].Get("stopPrice").String())
	assert.Equal(t, "SELL", legs[0].Get("orderLegCollection.0.instruction").String())
}

func TestBuildEntryWithBracketShortSide(t *testing.T) {
	a := NewAdapter()
	intent := bracketIntent()
	intent.Side = types.SideShort
	intent.Targets[0].Price = 184
	p, err := a.BuildEntryWithBracket(intent)
	require.NoError(t, err)

	body := gjson.ParseBytes(p.Body)
	assert.Equal(t, "SELL_SHORT", body.Get("orderLegCollection.0.instruction").String())
	assert.Equal(t, "BUY_TO_COVER",
		body.Get("childOrderStrategies.0.childOrderStrategies.0.orderLegCollection.0.instruction").String())
}

func TestBuildMultiTargetExit(t *testing.T) {
	a := NewAdapter()
	intent := bracketIntent()
	intent.Targets = []types.ProfitTarget{
		{Quantity: 60, Price: 192},
		{Quantity: 40, Price: 195},
	}
	p, err := a.BuildMultiTargetExit(intent)
	require.NoError(t, err)

	groups := gjson.GetBytes(p.Body, "childOrderStrategies").Array()
	require.Len(t, groups, 2)
	assert.Equal(t, float64(60), groups[0].Get("childOrderStrategies.0.orderLegCollection.0.quantity").Float())
	assert.Equal(t, float64(40), groups[1].Get("childOrderStrategies.0.orderLegCollection.0.quantity").Float())
}

func TestBuildMultiTargetExitBadAllocation(t *testing.T) {
	a := NewAdapter()
	intent := bracketIntent()
	intent.Targets = []types.ProfitTarget{{Quantity: 60, Price: 192}, {Quantity: 50, Price: 195}}
	_, err := a.BuildMultiTargetExit(intent)
	assert.ErrorIs(t, err, broker.ErrInvalidTargetAllocation)
}

func TestBuildValidation(t *testing.T) {
	a := NewAdapter()

	intent := bracketIntent()
	intent.Quantity = 0
	_, err := a.BuildEntryWithBracket(intent)
	assert.ErrorIs(t, err, broker.ErrInvalidQuantity)

	intent = bracketIntent()
	intent.Entry = types.EntrySpec{Kind: types.KindLimit}
	_, err = a.BuildEntryWithBracket(intent)
	assert.ErrorIs(t, err, broker.ErrUnsupportedOrderKind)

	_, err = a.BuildSingleOrder(broker.SingleSpec{
		Symbol: "AAPL", Kind: "trailing_stop", Quantity: 10, Side: types.SideLong,
	})
	assert.ErrorIs(t, err, broker.ErrUnsupportedOrderKind)
}

// A built bracket, echoed back with broker-side ids and statuses, must
// classify back to the same structure the intent described.
func TestClassifyRoundTrip(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildEntryWithBracket(bracketIntent())
	require.NoError(t, err)

	echo, err := decorate(string(p.Body), "1001", "WORKING")
	require.NoError(t, err)
	node := gjson.Parse(echo)

	info, err := a.Describe(node)
	require.NoError(t, err)
	assert.Equal(t, broker.KindBracket, info.Kind)
	assert.Equal(t, types.StatusWorking, info.Status)
	assert.Equal(t, "AAPL", info.Symbol)
	assert.Equal(t, types.KindLimit, info.OrderKind)
	assert.Equal(t, float64(100), info.Quantity)
	assert.True(t, info.OpensPosition)

	pe, ok := a.Prospective(node)
	require.True(t, ok)
	assert.Equal(t, float64(195), pe.Limit)
	assert.Equal(t, float64(186), pe.Stop)
}

func TestDescribeUnknownStatus(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{"orderId":9,"orderStrategyType":"SINGLE","orderType":"MARKET","status":"HALTED_BY_VENUE",
		"orderLegCollection":[{"instruction":"BUY","quantity":5,"instrument":{"symbol":"MSFT"}}]}`)
	info, err := a.Describe(node)
	var unknown *broker.UnknownStatusError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "HALTED_BY_VENUE", unknown.Status)
	assert.Equal(t, types.StatusWorking, info.Status)
}

func TestOcoContainerWithoutStatusIsWorking(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{"orderId":7,"orderStrategyType":"OCO","childOrderStrategies":[]}`)
	info, err := a.Describe(node)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWorking, info.Status)
}

func TestFills(t *testing.T) {
	a := NewAdapter()
	node := gjson.Parse(`{
		"orderId": 55, "orderStrategyType": "SINGLE", "orderType": "MARKET", "status": "FILLED",
		"orderLegCollection": [{"instruction":"BUY","quantity":150,"instrument":{"symbol":"AAPL"}}],
		"orderActivityCollection": [
			{"activityType":"EXECUTION","executionLegs":[
				{"quantity":100,"price":10.00,"time":"2026-08-28T13:31:02Z"},
				{"quantity":50,"price":10.02,"time":"2026-08-28T13:31:02Z"}
			]},
			{"activityType":"ORDER_ACTION"}
		]}`)
	fills := a.Fills(node)
	require.Len(t, fills, 1)
	require.Len(t, fills[0].Legs, 2)
	assert.Equal(t, float64(100), fills[0].Legs[0].Quantity)
	assert.False(t, fills[0].Time.IsZero())
}

// Once the TRIGGER parent fills, the reconciler must recover the exact exit
// pair the intent asked for from the broker's echo of the built payload.
func TestBracketLifecycleYieldsExitPair(t *testing.T) {
	a := NewAdapter()
	p, err := a.BuildEntryWithBracket(bracketIntent())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(p.Body, &doc))
	doc["orderId"] = "1001"
	doc["status"] = "FILLED"
	group := doc["childOrderStrategies"].([]any)[0].(map[string]any)
	for i, raw := range group["childOrderStrategies"].([]any) {
		leg := raw.(map[string]any)
		leg["orderId"] = fmt.Sprintf("%d", 1002+i)
		leg["status"] = "WORKING"
	}
	echo, err := json.Marshal(doc)
	require.NoError(t, err)

	clock, err := marketclock.New("America/New_York", "09:30")
	require.NoError(t, err)
	res := reconcile.New(a, clock).Parse([]gjson.Result{gjson.ParseBytes(echo)},
		time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC))

	require.Len(t, res.Pairs["AAPL"], 1)
	pair := res.Pairs["AAPL"][0]
	assert.Equal(t, types.PairSourceOTO, pair.Source)
	assert.Equal(t, "1001", pair.ParentID)
	require.NotNil(t, pair.Stop)
	require.NotNil(t, pair.Limit)
	assert.Equal(t, float64(186), pair.Stop.Price)
	assert.Equal(t, float64(195), pair.Limit.Price)
	assert.Empty(t, res.Entries["AAPL"])
}

func TestStatusTableTotality(t *testing.T) {
	for raw, want := range Statuses.Entries {
		got, err := Statuses.Map(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := Statuses.Map("SOMETHING_NEW")
	var unknown *broker.UnknownStatusError
	assert.ErrorAs(t, err, &unknown)
}
