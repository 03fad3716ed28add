package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	for raw, want := range map[string]Side{
		"long": SideLong, "BUY": SideLong, " short ": SideShort, "sell": SideShort,
	} {
		got, ok := ParseSide(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseSide("hold")
	assert.False(t, ok)

	assert.Equal(t, SideShort, SideLong.Opposite())
	assert.Equal(t, SideLong, SideShort.Opposite())
}

func TestIntentTargetHelpers(t *testing.T) {
	intent := OrderIntent{Targets: []ProfitTarget{{Quantity: 6, Price: 101}, {Quantity: 4, Price: 103}}}
	assert.Equal(t, float64(101), intent.FirstTarget())
	assert.Equal(t, float64(10), intent.TargetQuantity())

	assert.Zero(t, OrderIntent{}.FirstTarget())
}

func TestSnapshotSymbols(t *testing.T) {
	snap := NewAccountSnapshot("alpaca", "PA3")
	snap.Entries["AAPL"] = []EntryOrder{{Symbol: "AAPL"}}
	snap.Positions["MSFT"] = Position{Symbol: "MSFT", Quantity: 5}
	snap.Executions["AAPL"] = []OrderExecution{{Symbol: "AAPL"}}

	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, snap.Symbols())
	assert.Nil(t, (*AccountSnapshot)(nil).Symbols())
}

func TestPositionFlat(t *testing.T) {
	assert.True(t, Position{}.Flat())
	assert.False(t, Position{Quantity: -10}.Flat())
}
