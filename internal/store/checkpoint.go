// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// Checkpoint is a flattened point-in-time snapshot of the store, written
// before the compute instance stops so state survives instance loss.
type Checkpoint struct {
	TakenAt   time.Time              `json:"taken_at"`
	Trades    []model.TradeRecord    `json:"trades"`
	Positions []model.PositionRecord `json:"positions"`
	Results   []model.BacktestResult `json:"results"`
}

// Flatten reads the full store into one snapshot.
func Flatten(ctx context.Context, s Store) (*Checkpoint, error) {
	trades, err := s.ListTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list trades: %w", err)
	}
	positions, err := s.ListPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list positions: %w", err)
	}
	results, err := s.ListJobResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list results: %w", err)
	}
	return &Checkpoint{
		TakenAt:   time.Now().UTC(),
		Trades:    trades,
		Positions: positions,
		Results:   results,
	}, nil
}

// WriteCheckpoint flattens the store and writes the snapshot atomically to a
// timestamped file under dir. Returns the written path. A crash mid-write
// leaves no partial file behind.
func WriteCheckpoint(ctx context.Context, s Store, dir string) (string, error) {
	cp, err := Flatten(ctx, s)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	buf, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("checkpoint: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("checkpoint-%s.json", cp.TakenAt.Format("20060102T150405Z")))
	if err := renameio.WriteFile(path, buf, 0o640); err != nil {
		return "", fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return path, nil
}
