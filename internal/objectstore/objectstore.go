package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cellprofiler/cpbuild/internal/project"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Region used when the configuration leaves it out.
const DefaultRegion = "us-east-1"

// Connection settings for S3-compatible storage.
type Config struct {
	Endpoint  string // Host and port, without scheme.
	AccessKey string // Empty falls back to MINIO_* and AWS_* environment variables.
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string // Prepended to every object key.
	UseSSL    bool
}

// Converts the project's publish settings.
func ConfigFromProject(p project.Publish) Config {
	cfg := Config{
		Endpoint:  p.Endpoint,
		AccessKey: p.AccessKey,
		SecretKey: p.SecretKey,
		Region:    p.Region,
		Bucket:    p.Bucket,
		Prefix:    p.Prefix,
		UseSSL:    !p.Insecure,
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	return cfg
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("%w: endpoint must not include scheme: %q", ErrInvalidConfig, c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("%w: access key and secret key must be set together", ErrInvalidConfig)
	}
	return nil
}

// Creates a MinIO client for cfg.
func NewClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     newCredentials(cfg),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}
	return minio.New(cfg.Endpoint, opts)
}

// Returns static credentials when configured, else the environment chain.
func newCredentials(cfg Config) *credentials.Credentials {
	if cfg.AccessKey != "" {
		return credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
	})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// An uploaded object.
type Object struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// Uploads build outputs to a bucket.
type Publisher struct {
	client *minio.Client
	cfg    Config
}

// Creates a [Publisher] connected to the configured endpoint.
func New(cfg Config) (*Publisher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

// Uploads the file at path under "<prefix>/<version>/<file name>".
//
// The bucket is created when it does not exist. An existing object with
// the same key is overwritten.
func (p *Publisher) Publish(ctx context.Context, file, version string) (*Object, error) {
	if err := ensureBucket(ctx, p.client, p.cfg.Bucket, p.cfg.Region); err != nil {
		return nil, fmt.Errorf("%w: ensure bucket %s: %w", ErrUpload, p.cfg.Bucket, err)
	}

	key := ObjectKey(p.cfg.Prefix, version, file)
	slog.Info("publishing", "file", file, "bucket", p.cfg.Bucket, "key", key)

	info, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, file, minio.PutObjectOptions{
		ContentType: contentType(file),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpload, key, err)
	}

	return &Object{Bucket: info.Bucket, Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

// Returns the object key for file. Empty segments are left out.
func ObjectKey(prefix, version, file string) string {
	var parts []string
	for _, p := range []string{strings.Trim(prefix, "/"), version, filepath.Base(file)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	slog.Debug("creating bucket", "bucket", bucket, "region", region)
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func contentType(file string) string {
	if strings.EqualFold(filepath.Ext(file), ".exe") {
		return "application/vnd.microsoft.portable-executable"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
