package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"traderail/internal/account"
	"traderail/internal/gateway/broker"
	"traderail/internal/types"
)

// SnapshotSource is the read side of the API.
type SnapshotSource interface {
	Brokers() []string
	Snapshot(brokerName string) (*types.AccountSnapshot, bool)
	Snapshots() map[string]*types.AccountSnapshot
	Refresh(ctx context.Context, brokerName string, now time.Time) (*types.AccountSnapshot, error)
}

// OrderManager is the write side of the API.
type OrderManager interface {
	PlaceEntry(ctx context.Context, brokerName string, intent types.OrderIntent) (string, error)
	PlaceMultiTarget(ctx context.Context, brokerName string, intent types.OrderIntent) (string, error)
	PlaceOcoExit(ctx context.Context, brokerName, symbol string, side types.Side, qty, target, stop float64) (string, error)
	PlaceSingle(ctx context.Context, brokerName string, spec broker.SingleSpec) (string, error)
	Replace(ctx context.Context, brokerName, orderID string, spec broker.SingleSpec) (string, error)
	Cancel(ctx context.Context, brokerName, orderID string) error
}

// Router registers the JSON API routes.
type Router struct {
	agg SnapshotSource
	mgr OrderManager
}

func NewRouter(agg SnapshotSource, mgr OrderManager) *Router {
	return &Router{agg: agg, mgr: mgr}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/brokers", r.handleBrokers)
	group.GET("/snapshots", r.handleSnapshots)
	group.GET("/snapshots/:broker", r.handleSnapshot)
	group.GET("/snapshots/:broker/symbols/:symbol", r.handleSymbol)
	group.POST("/snapshots/:broker/refresh", r.handleRefresh)
	if r.mgr != nil {
		group.POST("/orders/:broker/entry", r.handlePlaceEntry)
		group.POST("/orders/:broker/multi", r.handlePlaceMulti)
		group.POST("/orders/:broker/oco", r.handlePlaceOco)
		group.POST("/orders/:broker/single", r.handlePlaceSingle)
		group.PUT("/orders/:broker/:id", r.handleReplace)
		group.DELETE("/orders/:broker/:id", r.handleCancel)
	}
}

func (r *Router) handleBrokers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"brokers": r.agg.Brokers()})
}

func (r *Router) handleSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, r.agg.Snapshots())
}

func (r *Router) handleSnapshot(c *gin.Context) {
	snap, ok := r.agg.Snapshot(c.Param("broker"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for broker"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleSymbol(c *gin.Context) {
	snap, ok := r.agg.Snapshot(c.Param("broker"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for broker"})
		return
	}
	sym := c.Param("symbol")
	pos, hasPos := snap.Positions[sym]
	resp := gin.H{
		"symbol":     sym,
		"entries":    snap.Entries[sym],
		"exit_pairs": snap.ExitPairs[sym],
		"executions": snap.Executions[sym],
	}
	if hasPos {
		resp["position"] = pos
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleRefresh(c *gin.Context) {
	snap, err := r.agg.Refresh(c.Request.Context(), c.Param("broker"), time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handlePlaceEntry(c *gin.Context) {
	var intent types.OrderIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := r.mgr.PlaceEntry(c.Request.Context(), c.Param("broker"), intent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id})
}

func (r *Router) handlePlaceMulti(c *gin.Context) {
	var intent types.OrderIntent
	if err := c.ShouldBindJSON(&intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := r.mgr.PlaceMultiTarget(c.Request.Context(), c.Param("broker"), intent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id})
}

type ocoRequest struct {
	Symbol string  `json:"symbol" binding:"required"`
	Side   string  `json:"side" binding:"required"`
	Qty    float64 `json:"quantity" binding:"required"`
	Target float64 `json:"target" binding:"required"`
	Stop   float64 `json:"stop" binding:"required"`
}

func (r *Router) handlePlaceOco(c *gin.Context) {
	var req ocoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, ok := types.ParseSide(req.Side)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be long or short"})
		return
	}
	id, err := r.mgr.PlaceOcoExit(c.Request.Context(), c.Param("broker"), req.Symbol, side, req.Qty, req.Target, req.Stop)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id})
}

type singleRequest struct {
	Symbol        string  `json:"symbol" binding:"required"`
	Kind          string  `json:"kind" binding:"required"`
	Quantity      float64 `json:"quantity" binding:"required"`
	Price         float64 `json:"price"`
	Side          string  `json:"side" binding:"required"`
	OpensPosition bool    `json:"opens_position"`
}

func (req singleRequest) spec() (broker.SingleSpec, error) {
	side, ok := types.ParseSide(req.Side)
	if !ok {
		return broker.SingleSpec{}, errors.New("side must be long or short")
	}
	return broker.SingleSpec{
		Symbol:        req.Symbol,
		Kind:          types.OrderKind(req.Kind),
		Quantity:      req.Quantity,
		Price:         req.Price,
		Side:          side,
		OpensPosition: req.OpensPosition,
	}, nil
}

func (r *Router) handlePlaceSingle(c *gin.Context) {
	var req singleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spec, err := req.spec()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := r.mgr.PlaceSingle(c.Request.Context(), c.Param("broker"), spec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id})
}

func (r *Router) handleReplace(c *gin.Context) {
	var req singleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spec, err := req.spec()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := r.mgr.Replace(c.Request.Context(), c.Param("broker"), c.Param("id"), spec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id})
}

func (r *Router) handleCancel(c *gin.Context) {
	if err := r.mgr.Cancel(c.Request.Context(), c.Param("broker"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, broker.ErrUnsupportedOrderKind),
		errors.Is(err, broker.ErrInvalidQuantity),
		errors.Is(err, broker.ErrInvalidTargetAllocation):
		status = http.StatusBadRequest
	case errors.Is(err, account.ErrReplaceInFlight):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
