package blob

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/config"
	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

type MinioStore struct {
	logger *zap.Logger
	client *minio.Client
	bucket string
}

func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	return minio.New(cfg.Blob.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Blob.AccessKey, cfg.Blob.SecretKey, ""),
		Secure: cfg.Blob.UseSSL,
		Region: cfg.Blob.Region,
	})
}

func NewMinioStore(logger *zap.Logger, client *minio.Client, cfg *config.Config) Store {
	return &MinioStore{
		logger: logger,
		client: client,
		bucket: cfg.Blob.Bucket,
	}
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return internalerrors.NewTransientError("blob delete", err)
	}
	return nil
}

func (s *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	removed := 0
	for object := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return removed, internalerrors.NewTransientError("blob list", object.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, internalerrors.NewTransientError("blob delete", err)
		}
		removed++
	}

	s.logger.Debug("Removed blob prefix",
		zap.String("prefix", prefix),
		zap.Int("removed", removed))

	return removed, nil
}
