// Package publish copies the artifacts of a finished run to object storage.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fraugster/csv2parquet/internal/failure"
)

// Config selects the destination. An empty URL disables publishing.
type Config struct {
	URL             string `mapstructure:"url" yaml:"url" json:"url"`
	Region          string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
}

// Enabled reports whether a destination is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"
)

// Target is a parsed destination URL.
type Target struct {
	Scheme string
	Bucket string
	Prefix string
}

func (t Target) String() string {
	if t.Prefix == "" {
		return t.Scheme + "://" + t.Bucket
	}
	return t.Scheme + "://" + t.Bucket + "/" + t.Prefix
}

// Key returns the object key for a local file.
func (t Target) Key(localPath string) string {
	return path.Join(t.Prefix, filepath.Base(localPath))
}

// ParseURL accepts s3://bucket/prefix and gs://bucket/prefix.
func ParseURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, failure.Wrap(err, failure.Config, "invalid publish url %q", raw)
	}
	switch u.Scheme {
	case SchemeS3, SchemeGCS:
	default:
		return Target{}, failure.New(failure.Config, "unsupported publish url scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return Target{}, failure.New(failure.Config, "publish url %q has no bucket", raw)
	}
	return Target{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader) error
}

// Publisher uploads local files below a target.
type Publisher struct {
	target Target
	up     Uploader
	log    *zap.Logger
}

// New creates a publisher with an explicit uploader.
func New(target Target, up Uploader, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{target: target, up: up, log: log}
}

// ForURL creates a publisher with the uploader matching the URL scheme.
func ForURL(ctx context.Context, cfg Config, log *zap.Logger) (*Publisher, error) {
	target, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var up Uploader
	switch target.Scheme {
	case SchemeS3:
		up, err = newS3Uploader(ctx, cfg)
	case SchemeGCS:
		up, err = newGCSUploader(ctx, cfg)
	}
	if err != nil {
		return nil, failure.Wrap(err, failure.IO, "creating %s client", target.Scheme)
	}
	return New(target, up, log), nil
}

// Close releases the uploader's client if it holds one.
func (p *Publisher) Close() error {
	if c, ok := p.up.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Target returns the destination.
func (p *Publisher) Target() Target {
	return p.target
}

// Publish uploads the files concurrently and returns their URLs in the
// order given. Empty paths are skipped. Files that would end up under the
// same key are rejected before anything is uploaded.
func (p *Publisher) Publish(ctx context.Context, paths ...string) ([]string, error) {
	seen := make(map[string]string, len(paths))
	for _, local := range paths {
		if local == "" {
			continue
		}
		key := p.target.Key(local)
		if other, ok := seen[key]; ok {
			return nil, failure.New(failure.Config, "%s and %s would both be published as %s", other, local, key)
		}
		seen[key] = local
	}

	urls := make([]string, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, local := range paths {
		if local == "" {
			continue
		}
		g.Go(func() error {
			key := p.target.Key(local)
			if err := p.uploadFile(ctx, local, key); err != nil {
				return err
			}
			urls[i] = fmt.Sprintf("%s://%s/%s", p.target.Scheme, p.target.Bucket, key)
			p.log.Info("Published artifact", zap.String("path", local), zap.String("url", urls[i]))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := urls[:0]
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (p *Publisher) uploadFile(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return failure.Wrap(err, failure.IO, "opening %s", local)
	}
	defer f.Close()

	if err := p.up.Upload(ctx, p.target.Bucket, key, f); err != nil {
		return failure.Wrap(err, failure.IO, "uploading %s to %s", local, p.target)
	}
	return nil
}
