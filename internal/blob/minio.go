package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// MinioConfig holds the connection settings for MinioStore.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBase overrides the public URL host, e.g. a CDN in front of the bucket.
	PublicBase string
}

type MinioStore struct {
	cli *minio.Client
	cfg MinioConfig
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}
	return &MinioStore{cli: cli, cfg: cfg}, nil
}

// EnsureBucket creates the bucket if missing and makes its objects publicly readable.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.cli.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", m.cfg.Bucket)
	}
	if exists {
		return nil
	}
	if err := m.cli.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, "create bucket %s", m.cfg.Bucket)
	}
	return m.cli.SetBucketPolicy(ctx, m.cfg.Bucket, publicReadPolicy(m.cfg.Bucket))
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.cli.PutObject(ctx, m.cfg.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "put %s", key)
	}
	return m.URL(key), nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.cli.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (m *MinioStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for obj := range m.cli.ListObjects(ctx, m.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, "list objects")
		}
		out = append(out, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

func (m *MinioStore) base() string {
	if m.cfg.PublicBase != "" {
		return strings.TrimRight(m.cfg.PublicBase, "/") + "/"
	}
	scheme := "http://"
	if m.cfg.UseSSL {
		scheme = "https://"
	}
	return scheme + m.cfg.Endpoint + "/" + m.cfg.Bucket + "/"
}

func (m *MinioStore) URL(key string) string { return m.base() + key }

func (m *MinioStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, m.base()) {
		return "", false
	}
	return strings.TrimPrefix(url, m.base()), true
}
