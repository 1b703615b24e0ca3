package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"transcript-server/internal/domain"
)

// ObjectStore keeps artifacts in an S3 bucket as <user>/<project>/<kind>.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to an S3 compatible endpoint.
func NewObjectStore(cfg domain.S3Settings) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Get reads one artifact.
func (s *ObjectStore) Get(ctx context.Context, key Key, kind Kind) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, &Error{Op: "get", Key: key, Kind: kind, Err: err}
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key, kind), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("get", key, kind, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap("get", key, kind, err)
	}
	return data, nil
}

// Put uploads one artifact.
func (s *ObjectStore) Put(ctx context.Context, key Key, kind Kind, data []byte) error {
	if err := key.Validate(); err != nil {
		return &Error{Op: "put", Key: key, Kind: kind, Err: err}
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName(key, kind), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(kind)})
	if err != nil {
		return &Error{Op: "put", Key: key, Kind: kind, Err: err}
	}
	return nil
}

// ListKeys returns every project that has an artifact of kind.
func (s *ObjectStore) ListKeys(ctx context.Context, kind Kind) ([]Key, error) {
	var keys []Key
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, &Error{Op: "list", Kind: kind, Err: object.Err}
		}
		key, k, ok := parseObjectName(object.Key)
		if ok && k == kind {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *ObjectStore) wrap(op string, key Key, kind Kind, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return &Error{Op: op, Key: key, Kind: kind, Err: err}
}

func objectName(key Key, kind Kind) string {
	return key.User + "/" + key.Project + "/" + string(kind)
}

func parseObjectName(name string) (Key, Kind, bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 {
		return Key{}, "", false
	}
	key := Key{User: parts[0], Project: parts[1]}
	if key.Validate() != nil {
		return Key{}, "", false
	}
	return key, Kind(parts[2]), true
}

func contentType(kind Kind) string {
	switch kind {
	case KindWAV:
		return "audio/wav"
	case KindRaw, KindResults, KindMeta:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
