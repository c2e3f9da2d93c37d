// SPDX-License-Identifier: MIT

package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
)

// ObjectSyncerConfig configures the S3-compatible object store target.
type ObjectSyncerConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// ObjectSyncer uploads artifacts to an S3-compatible object store.
type ObjectSyncer struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// NewObjectSyncer builds the client and ensures the bucket exists.
func NewObjectSyncer(ctx context.Context, cfg ObjectSyncerConfig) (*ObjectSyncer, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("artifact: object store endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "makenaide-artifacts"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("artifact: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("artifact: create bucket %s: %w", bucket, err)
		}
	}
	return &ObjectSyncer{client: client, bucket: bucket, logger: log.WithComponent("artifact")}, nil
}

// SyncDir walks localDir and uploads every regular file to
// <bucket>/<remotePrefix>/<relative path>. The walk stops on the first
// failed upload so the caller can treat a partial sync as a failure.
func (s *ObjectSyncer) SyncDir(ctx context.Context, localDir, remotePrefix string) (SyncResult, error) {
	var res SyncResult
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		object := path.Join(remotePrefix, filepath.ToSlash(rel))
		info, err := s.client.FPutObject(ctx, s.bucket, object, p, minio.PutObjectOptions{})
		if err != nil {
			return fmt.Errorf("upload %s: %w", object, err)
		}
		res.Uploaded++
		res.Bytes += info.Size
		syncedFilesTotal.WithLabelValues("object").Inc()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// Nothing produced yet is not a failure.
			return SyncResult{}, nil
		}
		syncFailuresTotal.WithLabelValues("object").Inc()
		return res, fmt.Errorf("artifact: sync %s: %w", localDir, err)
	}
	s.logger.Info().
		Str("dir", localDir).
		Str("prefix", remotePrefix).
		Int("uploaded", res.Uploaded).
		Int64("bytes", res.Bytes).
		Msg("artifact sync complete")
	return res, nil
}

var _ Syncer = (*ObjectSyncer)(nil)
