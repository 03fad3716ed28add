// Package journal persists reconciled fills and snapshot summaries so a
// day's executions survive restarts and stay queryable after the broker's
// order history ages out.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"traderail/internal/types"
)

type executionModel struct {
	ID               int64   `gorm:"column:id;primaryKey"`
	Broker           string  `gorm:"column:broker;uniqueIndex:idx_execution,priority:1"`
	AccountID        string  `gorm:"column:account_id;uniqueIndex:idx_execution,priority:2"`
	Symbol           string  `gorm:"column:symbol;uniqueIndex:idx_execution,priority:3"`
	FilledAtUnix     int64   `gorm:"column:filled_at;uniqueIndex:idx_execution,priority:4"`
	Side             string  `gorm:"column:side;uniqueIndex:idx_execution,priority:5"`
	Quantity         float64 `gorm:"column:quantity;uniqueIndex:idx_execution,priority:6"`
	Price            float64 `gorm:"column:price"`
	ClosesPosition   bool    `gorm:"column:closes_position"`
	Bucket           string  `gorm:"column:bucket"`
	MinutesSinceOpen int     `gorm:"column:minutes_since_open"`
	CreatedAtUnix    int64   `gorm:"column:created_at"`
}

func (executionModel) TableName() string { return "executions" }

type snapshotModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	Broker      string         `gorm:"column:broker;index:idx_snapshot_broker_ts,priority:1"`
	AccountID   string         `gorm:"column:account_id"`
	TakenAtUnix int64          `gorm:"column:taken_at;index:idx_snapshot_broker_ts,priority:2"`
	Balance     float64        `gorm:"column:balance"`
	Executions  int            `gorm:"column:execution_count"`
	ExitPairs   int            `gorm:"column:exit_pair_count"`
	RawJSON     datatypes.JSON `gorm:"column:raw_json;type:TEXT"`
	CreatedAt   int64          `gorm:"column:created_at"`
}

func (snapshotModel) TableName() string { return "snapshots" }

// Store implements the fill journal on Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&executionModel{}, &snapshotModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordExecutions upserts a batch of fills. Re-recording the same fill is a
// no-op, so repeated refreshes of the same day stay idempotent.
func (s *Store) RecordExecutions(ctx context.Context, broker, accountID string, execs []types.OrderExecution) error {
	if s == nil || s.db == nil || len(execs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	models := make([]executionModel, 0, len(execs))
	for _, e := range execs {
		models = append(models, newExecutionModel(broker, accountID, e, now))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models).Error
}

// RecordSnapshot persists one snapshot summary with its raw account payload.
func (s *Store) RecordSnapshot(ctx context.Context, snap *types.AccountSnapshot) error {
	if s == nil || s.db == nil || snap == nil {
		return nil
	}
	execs := 0
	for _, list := range snap.Executions {
		execs += len(list)
	}
	pairs := 0
	for _, list := range snap.ExitPairs {
		pairs += len(list)
	}
	model := snapshotModel{
		Broker:      snap.Broker,
		AccountID:   snap.AccountID,
		TakenAtUnix: snap.TakenAt.Unix(),
		Balance:     snap.Balance,
		Executions:  execs,
		ExitPairs:   pairs,
		RawJSON:     datatypes.JSON(snap.RawPayload),
		CreatedAt:   time.Now().Unix(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListExecutions returns the recorded fills for one broker and symbol within
// [from, to), ordered by fill time.
func (s *Store) ListExecutions(ctx context.Context, broker, symbol string, from, to time.Time) ([]types.OrderExecution, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("journal store not initialized")
	}
	var models []executionModel
	q := s.db.WithContext(ctx).
		Where("broker = ? AND filled_at >= ? AND filled_at < ?", broker, from.Unix(), to.Unix())
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if err := q.Order("filled_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.OrderExecution, 0, len(models))
	for _, m := range models {
		out = append(out, m.toExecution())
	}
	return out, nil
}

// newExecutionModel flattens one fill into its row form. The minute bucket is
// stored as RFC3339 text so the column stays readable in ad-hoc queries.
func newExecutionModel(broker, accountID string, e types.OrderExecution, createdAt int64) executionModel {
	return executionModel{
		Broker:           broker,
		AccountID:        accountID,
		Symbol:           e.Symbol,
		FilledAtUnix:     e.FilledAt.Unix(),
		Side:             e.Side,
		Quantity:         e.Quantity,
		Price:            e.Price,
		ClosesPosition:   e.ClosesPosition,
		Bucket:           e.Bucket.UTC().Format(time.RFC3339),
		MinutesSinceOpen: e.MinutesSinceOpen,
		CreatedAtUnix:    createdAt,
	}
}

func (m executionModel) toExecution() types.OrderExecution {
	bucket, _ := time.Parse(time.RFC3339, m.Bucket)
	return types.OrderExecution{
		Symbol:           m.Symbol,
		FilledAt:         time.Unix(m.FilledAtUnix, 0).UTC(),
		Quantity:         m.Quantity,
		Price:            m.Price,
		Side:             m.Side,
		ClosesPosition:   m.ClosesPosition,
		Bucket:           bucket,
		MinutesSinceOpen: m.MinutesSinceOpen,
	}
}
