// Package rawarchive keeps the raw order payloads returned by each broker,
// keyed by trading day. When classification logic changes, a day can be
// re-reconciled from the archive without another fetch.
package rawarchive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	_ "modernc.org/sqlite"
)

// Archive stores raw order nodes in a standalone SQLite database.
type Archive struct {
	mu sync.Mutex
	db *sql.DB
}

func New(path string) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("raw archive path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			broker TEXT NOT NULL,
			day TEXT NOT NULL,
			order_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			archived_at INTEGER NOT NULL,
			UNIQUE(broker, day, order_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_orders_broker_day ON raw_orders(broker, day);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("raw archive schema failed: %w", err)
		}
	}
	return nil
}

// StoreDay upserts one day's raw nodes for a broker. A re-archived order id
// replaces the earlier payload, so the archive tracks the latest fetch.
func (a *Archive) StoreDay(ctx context.Context, broker string, day time.Time, nodes map[string]gjson.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return fmt.Errorf("raw archive not initialized")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_orders (broker, day, order_id, payload, archived_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(broker, day, order_id) DO UPDATE SET payload = excluded.payload, archived_at = excluded.archived_at`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	dayKey := day.Format("2006-01-02")
	now := time.Now().Unix()
	for id, node := range nodes {
		if _, err := stmt.ExecContext(ctx, broker, dayKey, id, node.Raw, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadDay returns the archived nodes for one broker and day, keyed by order
// id.
func (a *Archive) LoadDay(ctx context.Context, broker string, day time.Time) (map[string]gjson.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, fmt.Errorf("raw archive not initialized")
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT order_id, payload FROM raw_orders WHERE broker = ? AND day = ?`,
		broker, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]gjson.Result)
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		out[id] = gjson.Parse(payload)
	}
	return out, rows.Err()
}
