// SPDX-License-Identifier: MIT

// Package store persists pipeline trading state locally. Trades are
// append-only, positions are upserted by symbol and backtest results are
// upserted by job ID, which makes job replay after queue redelivery safe.
package store

import (
	"context"
	"errors"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// Store is the local state store contract.
type Store interface {
	// AppendTrade records one executed trade. Never overwrites.
	AppendTrade(ctx context.Context, rec model.TradeRecord) error

	// ListTrades returns all trades in append order.
	ListTrades(ctx context.Context) ([]model.TradeRecord, error)

	// UpsertPosition writes the current position for rec.Symbol.
	UpsertPosition(ctx context.Context, rec model.PositionRecord) error

	// GetPosition returns the position for symbol or ErrNotFound.
	GetPosition(ctx context.Context, symbol string) (model.PositionRecord, error)

	// ListPositions returns all open positions.
	ListPositions(ctx context.Context) ([]model.PositionRecord, error)

	// PutJobResult stores a backtest result keyed by JobID. A replayed job
	// overwrites its own earlier result and nothing else.
	PutJobResult(ctx context.Context, rec model.BacktestResult) error

	// GetJobResult returns the result for jobID or ErrNotFound.
	GetJobResult(ctx context.Context, jobID string) (model.BacktestResult, error)

	// ListJobResults returns all stored backtest results.
	ListJobResults(ctx context.Context) ([]model.BacktestResult, error)

	Close() error
}
