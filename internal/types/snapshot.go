package types

import (
	"encoding/json"
	"time"
)

// AccountSnapshot is the full reconciled account state for one refresh
// cycle. The aggregator builds a snapshot atomically and publishes it
// wholesale; once published it is immutable and safe for concurrent reads.
// RawPayload keeps the unprocessed broker order list for diagnostics only.
type AccountSnapshot struct {
	Broker     string                      `json:"broker"`
	AccountID  string                      `json:"account_id"`
	TakenAt    time.Time                   `json:"taken_at"`
	Balance    float64                     `json:"balance"`
	Entries    map[string][]EntryOrder     `json:"entries"`
	ExitPairs  map[string][]ExitPair       `json:"exit_pairs"`
	Executions map[string][]OrderExecution `json:"executions"`
	Positions  map[string]Position         `json:"positions"`
	RawPayload json.RawMessage             `json:"-"`
}

// NewAccountSnapshot returns a snapshot with initialized maps.
func NewAccountSnapshot(broker, accountID string) *AccountSnapshot {
	return &AccountSnapshot{
		Broker:     broker,
		AccountID:  accountID,
		TakenAt:    time.Now(),
		Entries:    make(map[string][]EntryOrder),
		ExitPairs:  make(map[string][]ExitPair),
		Executions: make(map[string][]OrderExecution),
		Positions:  make(map[string]Position),
	}
}

// Symbols returns every symbol present in any of the snapshot maps.
func (s *AccountSnapshot) Symbols() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		if sym == "" || seen[sym] {
			return
		}
		seen[sym] = true
		out = append(out, sym)
	}
	for sym := range s.Entries {
		add(sym)
	}
	for sym := range s.ExitPairs {
		add(sym)
	}
	for sym := range s.Executions {
		add(sym)
	}
	for sym := range s.Positions {
		add(sym)
	}
	return out
}
