// SPDX-License-Identifier: MIT

package model

import "time"

// TradeRecord is an append-only execution record. Money fields are exact
// decimal strings; binary floats never cross the storage boundary (currency
// precision drift).
type TradeRecord struct {
	TradeID    string    `json:"trade_id"`
	JobID      string    `json:"job_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Price      string    `json:"price"`
	Quantity   string    `json:"quantity"`
	ExecutedAt time.Time `json:"executed_at"`
}

// PositionRecord is upserted by Symbol.
type PositionRecord struct {
	Symbol    string    `json:"symbol"`
	Quantity  string    `json:"quantity"`
	AvgPrice  string    `json:"avg_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BacktestResult is the persisted outcome of one backtest job, upserted by
// JobID so redeliveries overwrite rather than duplicate.
type BacktestResult struct {
	JobID       string    `json:"job_id"`
	Strategy    string    `json:"strategy"`
	DataRange   DataRange `json:"data_range"`
	TradeCount  int       `json:"trade_count"`
	TotalReturn string    `json:"total_return"`
	MaxDrawdown string    `json:"max_drawdown"`
	FinishedAt  time.Time `json:"finished_at"`
}

// ShutdownContext carries the reason and final statistics into the shutdown
// sequence. It is constructed at shutdown time and discarded after the
// notification is sent.
type ShutdownContext struct {
	Reason string         `json:"reason"`
	Stats  map[string]any `json:"stats,omitempty"`
}
