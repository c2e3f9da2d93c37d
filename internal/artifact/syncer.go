// SPDX-License-Identifier: MIT

// Package artifact moves locally produced files (checkpoints, result files,
// logs) to durable storage before the compute instance is stopped.
package artifact

import "context"

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Uploaded int
	Bytes    int64
}

// Syncer uploads the contents of a local directory to durable storage,
// preserving relative paths under the given remote prefix.
type Syncer interface {
	SyncDir(ctx context.Context, localDir, remotePrefix string) (SyncResult, error)
}
