package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

func testIntent() types.OrderIntent {
	return types.OrderIntent{
		Symbol:   "TSLA",
		Side:     types.SideLong,
		Quantity: 10,
		Entry:    types.EntrySpec{Kind: types.KindLimit, Price: 242.5},
		Targets:  []types.ProfitTarget{{Quantity: 10, Price: 250}},
		StopLoss: 238,
	}
}

func TestPlaceEntrySubmitsBuiltPayload(t *testing.T) {
	client := &fakeClient{}
	m := NewManager(testGateway(client), nil)

	id, err := m.PlaceEntry(context.Background(), "alpaca", testIntent())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", id)

	placed := client.placedPayloads()
	require.Len(t, placed, 1)
	body := gjson.ParseBytes(placed[0].Body)
	assert.Equal(t, "TSLA", body.Get("symbol").String())
	assert.Equal(t, placed[0].ClientID, body.Get("client_order_id").String())
}

func TestPlaceEntryRejectsInvalidIntent(t *testing.T) {
	client := &fakeClient{}
	m := NewManager(testGateway(client), nil)

	intent := testIntent()
	intent.Quantity = 0
	_, err := m.PlaceEntry(context.Background(), "alpaca", intent)
	assert.ErrorIs(t, err, broker.ErrInvalidQuantity)
	assert.Empty(t, client.placedPayloads())
}

func TestPlaceOnUnknownBroker(t *testing.T) {
	m := NewManager(testGateway(&fakeClient{}), nil)
	_, err := m.PlaceEntry(context.Background(), "etrade", testIntent())
	assert.Error(t, err)
}

func TestPlaceOcoExit(t *testing.T) {
	client := &fakeClient{}
	m := NewManager(testGateway(client), nil)

	_, err := m.PlaceOcoExit(context.Background(), "alpaca", "TSLA", types.SideLong, 10, 250, 238)
	require.NoError(t, err)
	require.Len(t, client.placedPayloads(), 1)
}

// A second replace for the same order while the first is still on the wire
// must be rejected, not queued.
func TestReplaceGuard(t *testing.T) {
	client := &fakeClient{
		replaceEntered: make(chan struct{}),
		replaceHold:    make(chan struct{}),
	}
	m := NewManager(testGateway(client), nil)
	spec := broker.SingleSpec{
		Symbol:   "TSLA",
		Kind:     types.KindLimit,
		Quantity: 10,
		Price:    243,
		Side:     types.SideLong,
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Replace(context.Background(), "alpaca", "o1", spec)
		done <- err
	}()

	select {
	case <-client.replaceEntered:
	case <-time.After(time.Second):
		t.Fatal("first replace never reached the client")
	}

	_, err := m.Replace(context.Background(), "alpaca", "o1", spec)
	assert.ErrorIs(t, err, ErrReplaceInFlight)

	m.mu.Lock()
	_, busy := m.inflight["alpaca/o1"]
	m.mu.Unlock()
	assert.True(t, busy)

	close(client.replaceHold)
	require.NoError(t, <-done)

	// The slot frees once the first replace resolves.
	client.replaceEntered = nil
	client.replaceHold = nil
	id, err := m.Replace(context.Background(), "alpaca", "o1", spec)
	require.NoError(t, err)
	assert.Equal(t, "o1-r", id)
}

func TestCancel(t *testing.T) {
	m := NewManager(testGateway(&fakeClient{}), nil)
	assert.NoError(t, m.Cancel(context.Background(), "alpaca", "o1"))
	assert.Error(t, m.Cancel(context.Background(), "etrade", "o1"))
}
