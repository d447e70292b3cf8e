package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/target/repodoc/internal/core"
	"github.com/target/repodoc/internal/domain/model"
)

// ObjectStore is the subset of *minio.Client used by ObjectMirror.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(
		ctx context.Context,
		bucketName, objectName, filePath string,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// MinioClientConfig holds connection details for an S3-compatible endpoint.
type MinioClientConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinioClient creates a minio client with static credentials.
func NewMinioClient(cfg MinioClientConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}
	return client, nil
}

// ObjectMirrorOptions configures an ObjectMirror.
type ObjectMirrorOptions struct {
	Store  ObjectStore
	Bucket string
	Region string
	// Prefix is prepended to every object key.
	Prefix string
	Logger *slog.Logger
}

// ObjectMirror copies archive bundles to an S3-compatible bucket under
// {prefix}/{repository}/{bundle file name}.
type ObjectMirror struct {
	store  ObjectStore
	bucket string
	region string
	prefix string
	logger *slog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

var _ core.ArchiveMirror = (*ObjectMirror)(nil)

// NewObjectMirror creates an ObjectMirror.
func NewObjectMirror(opts ObjectMirrorOptions) (*ObjectMirror, error) {
	if opts.Store == nil {
		return nil, errors.New("object store is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectMirror{
		store:  opts.Store,
		bucket: strings.TrimSpace(opts.Bucket),
		region: opts.Region,
		prefix: strings.Trim(opts.Prefix, "/"),
		logger: logger.With("component", "object_mirror"),
	}, nil
}

// ObjectKey returns the object name used for rec.
func (m *ObjectMirror) ObjectKey(repository string, rec model.ArchiveRecord) string {
	return path.Join(m.prefix, repository, path.Base(strings.ReplaceAll(rec.Path, `\`, "/")))
}

// Mirror uploads the bundle file referenced by rec.
func (m *ObjectMirror) Mirror(ctx context.Context, repository string, rec model.ArchiveRecord) error {
	if strings.TrimSpace(rec.Path) == "" {
		return errors.New("archive path is required")
	}
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	key := m.ObjectKey(repository, rec)
	info, err := m.store.FPutObject(ctx, m.bucket, key, rec.Path, minio.PutObjectOptions{
		ContentType: "application/zip",
		UserMetadata: map[string]string{
			"repository": repository,
			"folder":     rec.Folder,
			"version":    strconv.Itoa(rec.Version),
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	m.logger.DebugContext(ctx, "archive mirrored",
		"repository", repository,
		"bucket", m.bucket,
		"key", key,
		"size", info.Size,
	)
	return nil
}

func (m *ObjectMirror) ensureBucket(ctx context.Context) error {
	m.bucketOnce.Do(func() {
		exists, err := m.store.BucketExists(ctx, m.bucket)
		if err != nil {
			m.bucketErr = fmt.Errorf("check bucket %s: %w", m.bucket, err)
			return
		}
		if exists {
			return
		}
		if err := m.store.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			m.bucketErr = fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
	})
	return m.bucketErr
}
