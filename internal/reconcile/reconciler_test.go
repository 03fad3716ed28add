package reconcile

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/marketclock"
	"traderail/internal/types"
)

// testClassifier speaks a minimal literal dialect so the walk can be tested
// without any real broker's wire shape.
type testClassifier struct{}

var testStatuses = broker.StatusTable{
	Broker: "test",
	Entries: map[string]types.OrderStatus{
		"working":  types.StatusWorking,
		"filled":   types.StatusFilled,
		"canceled": types.StatusCanceled,
	},
}

func (testClassifier) Describe(node gjson.Result) (broker.NodeInfo, error) {
	info := broker.NodeInfo{
		ID:       node.Get("id").String(),
		Symbol:   node.Get("symbol").String(),
		Quantity: node.Get("qty").Float(),
		Price:    node.Get("price").Float(),
		Side:     node.Get("side").String(),
	}
	switch node.Get("kind").String() {
	case "bracket":
		info.Kind = broker.KindBracket
	case "oco":
		info.Kind = broker.KindOCO
	}
	switch node.Get("order_kind").String() {
	case "limit":
		info.OrderKind = types.KindLimit
	case "stop":
		info.OrderKind = types.KindStop
	default:
		info.OrderKind = types.KindMarket
	}
	info.OpensPosition = node.Get("opens").Bool()
	status, err := testStatuses.Map(node.Get("status").String())
	info.Status = status
	return info, err
}

func (testClassifier) Children(node gjson.Result) []gjson.Result {
	return node.Get("children").Array()
}

func (testClassifier) Fills(node gjson.Result) []broker.Fill {
	var fills []broker.Fill
	for _, raw := range node.Get("fills").Array() {
		t, _ := time.Parse(time.RFC3339, raw.Get("time").String())
		fill := broker.Fill{Time: t}
		for _, leg := range raw.Get("legs").Array() {
			fill.Legs = append(fill.Legs, broker.FillLeg{
				Quantity: leg.Get("qty").Float(),
				Price:    leg.Get("price").Float(),
			})
		}
		fills = append(fills, fill)
	}
	return fills
}

func (testClassifier) Prospective(node gjson.Result) (broker.ProspectiveExits, bool) {
	p := node.Get("prospective")
	if !p.Exists() {
		return broker.ProspectiveExits{}, false
	}
	return broker.ProspectiveExits{
		Stop:  p.Get("stop").Float(),
		Limit: p.Get("limit").Float(),
	}, true
}

func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	clock, err := marketclock.New("America/New_York", "09:30")
	require.NoError(t, err)
	return New(testClassifier{}, clock)
}

// 2026-08-28 13:31 UTC is 09:31 in New York, one minute after the open.
var testNow = time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

func parseNodes(raw ...string) []gjson.Result {
	out := make([]gjson.Result, 0, len(raw))
	for _, r := range raw {
		out = append(out, gjson.Parse(r))
	}
	return out
}

func TestWorkingBracketYieldsEntry(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"b1","symbol":"AAPL","kind":"bracket","status":"working",
		"order_kind":"limit","qty":100,"price":189.5,"side":"buy","opens":true,
		"prospective":{"stop":186,"limit":195}}`), testNow)

	require.Len(t, res.Entries["AAPL"], 1)
	entry := res.Entries["AAPL"][0]
	assert.Equal(t, "b1", entry.OrderID)
	assert.Equal(t, float64(186), entry.ProspectiveStop)
	assert.Equal(t, float64(195), entry.ProspectiveLimit)
	assert.Empty(t, res.Pairs["AAPL"])
}

func TestFilledBracketYieldsPair(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"b1","symbol":"AAPL","kind":"bracket","status":"filled","side":"buy","opens":true,
		"children":[{"id":"g1","symbol":"AAPL","kind":"oco","status":"working","children":[
			{"id":"l1","symbol":"AAPL","status":"working","order_kind":"limit","qty":100,"price":195,"side":"sell"},
			{"id":"l2","symbol":"AAPL","status":"working","order_kind":"stop","qty":100,"price":186,"side":"sell"}
		]}]}`), testNow)

	require.Len(t, res.Pairs["AAPL"], 1)
	pair := res.Pairs["AAPL"][0]
	assert.Equal(t, types.PairSourceOTO, pair.Source)
	assert.Equal(t, "b1", pair.ParentID)
	require.NotNil(t, pair.Stop)
	require.NotNil(t, pair.Limit)
	assert.Equal(t, float64(186), pair.Stop.Price)
	assert.Equal(t, float64(195), pair.Limit.Price)
	assert.Empty(t, res.Entries["AAPL"])
}

// One leg filled and one still working is a pair in teardown, not a live
// pair; nothing may be emitted.
func TestPairConservativeness(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"b1","symbol":"AAPL","kind":"bracket","status":"filled","side":"buy","opens":true,
		"children":[{"id":"g1","symbol":"AAPL","kind":"oco","status":"working","children":[
			{"id":"l1","symbol":"AAPL","status":"filled","order_kind":"limit","qty":100,"price":195,"side":"sell"},
			{"id":"l2","symbol":"AAPL","status":"working","order_kind":"stop","qty":100,"price":186,"side":"sell"}
		]}]}`), testNow)
	assert.Empty(t, res.Pairs["AAPL"])
}

func TestStandaloneOcoPair(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"g9","symbol":"MSFT","kind":"oco","status":"working","children":[
			{"id":"l1","symbol":"MSFT","status":"working","order_kind":"limit","qty":50,"price":430,"side":"sell"},
			{"id":"l2","symbol":"MSFT","status":"working","order_kind":"stop","qty":50,"price":415,"side":"sell"}
		]}`), testNow)

	require.Len(t, res.Pairs["MSFT"], 1)
	assert.Equal(t, types.PairSourceOCO, res.Pairs["MSFT"][0].Source)
	assert.Empty(t, res.Pairs["MSFT"][0].ParentID)
}

func TestPairDiscardedOnMissingPrice(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"g9","symbol":"MSFT","kind":"oco","status":"working","children":[
			{"id":"l1","symbol":"MSFT","status":"working","order_kind":"limit","qty":50,"price":430,"side":"sell"},
			{"id":"l2","symbol":"MSFT","status":"working","order_kind":"stop","qty":50,"side":"sell"}
		]}`), testNow)
	assert.Empty(t, res.Pairs["MSFT"])
}

func TestPairDiscardedOnDuplicateKind(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"g9","symbol":"MSFT","kind":"oco","status":"working","children":[
			{"id":"l1","symbol":"MSFT","status":"working","order_kind":"limit","qty":50,"price":430,"side":"sell"},
			{"id":"l2","symbol":"MSFT","status":"working","order_kind":"limit","qty":50,"price":432,"side":"sell"}
		]}`), testNow)
	assert.Empty(t, res.Pairs["MSFT"])
}

func TestExecutionAggregationIsVolumeWeighted(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"s1","symbol":"AAPL","status":"filled","side":"buy","opens":true,
		"fills":[{"time":"2026-08-28T13:31:02Z","legs":[
			{"qty":100,"price":10.00},{"qty":50,"price":10.02}]}]}`), testNow)

	require.Len(t, res.Executions["AAPL"], 1)
	exec := res.Executions["AAPL"][0]
	assert.Equal(t, float64(150), exec.Quantity)
	assert.InDelta(t, 10.0066666667, exec.Price, 1e-9)
	assert.Equal(t, 1, exec.MinutesSinceOpen)
	assert.False(t, exec.ClosesPosition)
}

func TestExecutionsSortedByFillTime(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(
		`{"id":"s2","symbol":"AAPL","status":"filled","side":"sell",
			"fills":[{"time":"2026-08-28T15:10:00Z","legs":[{"qty":50,"price":11}]}]}`,
		`{"id":"s1","symbol":"AAPL","status":"filled","side":"buy","opens":true,
			"fills":[{"time":"2026-08-28T13:31:00Z","legs":[{"qty":50,"price":10}]}]}`,
	), testNow)

	execs := res.Executions["AAPL"]
	require.Len(t, execs, 2)
	assert.True(t, execs[0].FilledAt.Before(execs[1].FilledAt))
	assert.True(t, execs[1].ClosesPosition)
}

func TestExecutionsOutsideTradingDayDropped(t *testing.T) {
	r := newTestReconciler(t)
	res := r.Parse(parseNodes(`{
		"id":"s1","symbol":"AAPL","status":"filled","side":"buy","opens":true,
		"fills":[{"time":"2026-08-27T15:00:00Z","legs":[{"qty":50,"price":10}]}]}`), testNow)
	assert.Empty(t, res.Executions["AAPL"])
}

func TestUnknownStatusRecordedAndKept(t *testing.T) {
	r := newTestReconciler(t)
	var recorded []error
	r.OnUnknownStatus = func(err error) { recorded = append(recorded, err) }

	res := r.Parse(parseNodes(`{
		"id":"b1","symbol":"AAPL","kind":"bracket","status":"mystery",
		"order_kind":"limit","qty":100,"price":189.5,"side":"buy","opens":true}`), testNow)

	require.NotEmpty(t, recorded)
	var unknown *broker.UnknownStatusError
	assert.ErrorAs(t, recorded[0], &unknown)
	// Conservatively working, so the entry is still surfaced.
	assert.Len(t, res.Entries["AAPL"], 1)
}

func TestDepthGuardStopsRunawayNesting(t *testing.T) {
	r := newTestReconciler(t)

	leaf := `{"id":"l","symbol":"AAPL","status":"working","order_kind":"limit","qty":1,"price":10,"side":"sell"}`
	node := leaf
	for i := 0; i < MaxDepth+2; i++ {
		node = fmt.Sprintf(`{"id":"g%d","symbol":"AAPL","kind":"oco","status":"working","children":[%s]}`, i, node)
	}
	require.Greater(t, strings.Count(node, "children"), MaxDepth)

	res := r.Parse(parseNodes(node), testNow)
	assert.Empty(t, res.Pairs["AAPL"])
}
