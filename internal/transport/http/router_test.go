package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"traderail/internal/account"
	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

type fakeSource struct {
	snaps map[string]*types.AccountSnapshot
}

func (s *fakeSource) Brokers() []string {
	out := make([]string, 0, len(s.snaps))
	for name := range s.snaps {
		out = append(out, name)
	}
	return out
}

func (s *fakeSource) Snapshot(name string) (*types.AccountSnapshot, bool) {
	snap, ok := s.snaps[name]
	return snap, ok
}

func (s *fakeSource) Snapshots() map[string]*types.AccountSnapshot { return s.snaps }

func (s *fakeSource) Refresh(ctx context.Context, name string, now time.Time) (*types.AccountSnapshot, error) {
	snap, ok := s.snaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown broker %q", name)
	}
	return snap, nil
}

type fakeManager struct {
	placeErr   error
	replaceErr error
}

func (m *fakeManager) PlaceEntry(ctx context.Context, b string, i types.OrderIntent) (string, error) {
	return "ord-1", m.placeErr
}

func (m *fakeManager) PlaceMultiTarget(ctx context.Context, b string, i types.OrderIntent) (string, error) {
	return "ord-1", m.placeErr
}

func (m *fakeManager) PlaceOcoExit(ctx context.Context, b, sym string, side types.Side, qty, target, stop float64) (string, error) {
	return "ord-1", m.placeErr
}

func (m *fakeManager) PlaceSingle(ctx context.Context, b string, spec broker.SingleSpec) (string, error) {
	return "ord-1", m.placeErr
}

func (m *fakeManager) Replace(ctx context.Context, b, id string, spec broker.SingleSpec) (string, error) {
	return id + "-r", m.replaceErr
}

func (m *fakeManager) Cancel(ctx context.Context, b, id string) error { return nil }

func newTestEngine(src SnapshotSource, mgr OrderManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewRouter(src, mgr).Register(engine.Group("/api/v1"))
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSnapshotRoutes(t *testing.T) {
	snap := types.NewAccountSnapshot("alpaca", "PA3")
	snap.Balance = 50000
	snap.Positions["TSLA"] = types.Position{Symbol: "TSLA", Quantity: 10, AvgPrice: 242.41}
	engine := newTestEngine(&fakeSource{snaps: map[string]*types.AccountSnapshot{"alpaca": snap}}, &fakeManager{})

	w := doRequest(engine, http.MethodGet, "/api/v1/brokers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpaca", gjson.Get(w.Body.String(), "brokers.0").String())

	w = doRequest(engine, http.MethodGet, "/api/v1/snapshots/alpaca", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(50000), gjson.Get(w.Body.String(), "balance").Float())

	w = doRequest(engine, http.MethodGet, "/api/v1/snapshots/schwab", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(engine, http.MethodGet, "/api/v1/snapshots/alpaca/symbols/TSLA", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(10), gjson.Get(w.Body.String(), "position.quantity").Float())
}

func TestPlaceEntryRoute(t *testing.T) {
	engine := newTestEngine(&fakeSource{}, &fakeManager{})

	body := `{"symbol":"TSLA","side":"long","quantity":10,
		"entry":{"kind":"limit","price":242.5},
		"targets":[{"quantity":10,"price":250}],"stop_loss":238}`
	w := doRequest(engine, http.MethodPost, "/api/v1/orders/alpaca/entry", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ord-1", gjson.Get(w.Body.String(), "order_id").String())

	w = doRequest(engine, http.MethodPost, "/api/v1/orders/alpaca/entry", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	mgr := &fakeManager{
		placeErr:   fmt.Errorf("%w: 0", broker.ErrInvalidQuantity),
		replaceErr: account.ErrReplaceInFlight,
	}
	engine := newTestEngine(&fakeSource{}, mgr)

	w := doRequest(engine, http.MethodPost, "/api/v1/orders/alpaca/entry", `{"symbol":"TSLA"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := `{"symbol":"TSLA","kind":"limit","quantity":10,"price":243,"side":"long"}`
	w = doRequest(engine, http.MethodPut, "/api/v1/orders/alpaca/o1", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOcoRouteRejectsBadSide(t *testing.T) {
	engine := newTestEngine(&fakeSource{}, &fakeManager{})
	body := `{"symbol":"TSLA","side":"sideways","quantity":10,"target":250,"stop":238}`
	w := doRequest(engine, http.MethodPost, "/api/v1/orders/alpaca/oco", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRoute(t *testing.T) {
	engine := newTestEngine(&fakeSource{}, &fakeManager{})
	w := doRequest(engine, http.MethodDelete, "/api/v1/orders/alpaca/o1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
