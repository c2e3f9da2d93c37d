// SPDX-License-Identifier: MIT

package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// DirSyncer copies artifacts into another local directory. Used by tests and
// single-host deployments without an object store.
type DirSyncer struct {
	Root string
}

func (s *DirSyncer) SyncDir(ctx context.Context, localDir, remotePrefix string) (SyncResult, error) {
	var res SyncResult
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(s.Root, remotePrefix, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return err
		}
		buf, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := renameio.WriteFile(dst, buf, 0o640); err != nil {
			return err
		}
		res.Uploaded++
		res.Bytes += int64(len(buf))
		syncedFilesTotal.WithLabelValues("dir").Inc()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return SyncResult{}, nil
		}
		syncFailuresTotal.WithLabelValues("dir").Inc()
		return res, fmt.Errorf("artifact: sync %s: %w", localDir, err)
	}
	return res, nil
}

var _ Syncer = (*DirSyncer)(nil)
