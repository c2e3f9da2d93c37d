// SPDX-License-Identifier: MIT

package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSyncerCopiesTree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "checkpoints"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "checkpoints", "checkpoint-1.json"), []byte(`{"a":1}`), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(src, "run.log"), []byte("done"), 0o640))

	s := &DirSyncer{Root: dst}
	res, err := s.SyncDir(context.Background(), src, "exec-42")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, int64(11), res.Bytes)

	copied, err := os.ReadFile(filepath.Join(dst, "exec-42", "checkpoints", "checkpoint-1.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(copied))
}

func TestDirSyncerMissingSourceIsNotAnError(t *testing.T) {
	s := &DirSyncer{Root: t.TempDir()}
	res, err := s.SyncDir(context.Background(), filepath.Join(t.TempDir(), "nope"), "exec-1")
	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
}

func TestDirSyncerHonorsContext(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o640))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &DirSyncer{Root: t.TempDir()}
	_, err := s.SyncDir(ctx, src, "exec-1")
	require.Error(t, err)
}
