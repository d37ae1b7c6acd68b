// Package storage resolves model artifact locations. Local paths pass
// through untouched; s3:// URIs are downloaded into a cache directory once
// and served from there afterwards.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/SyedDaiam9101/fugazzeta-service/internal/config"
)

const s3Scheme = "s3://"

var ErrInvalidURI = errors.New("invalid s3 uri")

// ObjectGetter is the subset of the S3 client the resolver needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver turns artifact locations into readable local paths.
type Resolver struct {
	client   ObjectGetter
	cacheDir string
	log      *zap.Logger
}

// NewResolver builds a Resolver. The S3 client is only constructed when a
// remote artifact is actually requested.
func NewResolver(cfg config.S3Config, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	dir := cfg.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "fugazzeta-models")
	}
	return &Resolver{cacheDir: dir, log: log, client: &lazyClient{cfg: cfg}}
}

// NewResolverWithClient builds a Resolver around an existing client.
func NewResolverWithClient(client ObjectGetter, cacheDir string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{client: client, cacheDir: cacheDir, log: log}
}

// IsRemote reports whether location refers to an object store.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// ParseURI splits s3://bucket/key into its bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsRemote(uri) {
		return "", "", fmt.Errorf("%w: %q has no s3:// prefix", ErrInvalidURI, uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q must be s3://bucket/key", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// CachePath is where a remote artifact is stored locally.
func (r *Resolver) CachePath(bucket, key string) string {
	name := strings.ReplaceAll(key, "/", "_")
	return filepath.Join(r.cacheDir, bucket, name)
}

// Resolve returns a local path for location, downloading it first when it
// is remote and not yet cached.
func (r *Resolver) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}

	bucket, key, err := ParseURI(location)
	if err != nil {
		return "", err
	}

	dest := r.CachePath(bucket, key)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		r.log.Debug("using cached artifact", zap.String("uri", location), zap.String("path", dest))
		return dest, nil
	}

	if err := r.download(ctx, bucket, key, dest); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	r.log.Info("artifact downloaded", zap.String("uri", location), zap.String("path", dest))
	return dest, nil
}

func (r *Resolver) download(ctx context.Context, bucket, key, dest string) error {
	object, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return err
	}
	defer object.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	// Write to a temp file and rename so a partial download is never mistaken
	// for a cached artifact.
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, object.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// lazyClient defers AWS config loading until the first GetObject.
type lazyClient struct {
	cfg    config.S3Config
	client *s3.Client
}

func (l *lazyClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if l.client == nil {
		c, err := newS3Client(ctx, l.cfg)
		if err != nil {
			return nil, err
		}
		l.client = c
	}
	return l.client.GetObject(ctx, params, optFns...)
}

func newS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsConfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsConfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		opts = append(opts, awsConfig.WithCredentialsProvider(provider))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = &cfg.EndpointURL
			o.UsePathStyle = true
		}
	}), nil
}
