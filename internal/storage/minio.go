package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bogdansurdu/vibranium-waccanda/internal/config"
)

// Minio stores package archives as objects in one bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme: host:port, insecure like a local MinIO.
	return raw, false, nil
}

// NewMinio connects to the configured endpoint and checks the bucket exists.
func NewMinio(ctx context.Context, cfg config.S3) (*Minio, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	m := &Minio{client: client, bucket: cfg.Bucket}
	if err := m.Check(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Put uploads r as object name.
func (m *Minio) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return name, nil
}

// Open fetches the object at location. Stat is forced so a missing key
// surfaces here rather than midway through the response.
func (m *Minio) Open(ctx context.Context, location string) (*Object, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissing, err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrMissing, location)
		}
		return nil, fmt.Errorf("%w: %v", ErrMissing, err)
	}

	return &Object{
		ReadCloser: obj,
		Name:       path.Base(location),
		Size:       info.Size,
	}, nil
}

// Check verifies the bucket is reachable.
func (m *Minio) Check(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("minio bucket does not exist: %s", m.bucket)
	}
	return nil
}
