// Package gcs stages NDJSON batches in Cloud Storage so warehouse load jobs
// can read them from a gs:// reference instead of an inline upload.
package gcs

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	contentType     = "application/x-ndjson"
	contentEncoding = "gzip"
	fileExtension   = ".json.gz"
)

// Config configures the stager
type Config struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
}

// bucket is the write side of a Cloud Storage bucket
type bucket interface {
	NewWriter(ctx context.Context, name string, metadata map[string]string) io.WriteCloser
}

type storageBucket struct {
	handle *storage.BucketHandle
}

func (b storageBucket) NewWriter(ctx context.Context, name string, metadata map[string]string) io.WriteCloser {
	w := b.handle.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.ContentEncoding = contentEncoding
	w.Metadata = metadata
	return w
}

// Stager writes gzip NDJSON objects under gs://<bucket>/<prefix>/<object>/<date>/
type Stager struct {
	client *storage.Client
	bucket bucket
	name   string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewStager creates a stager on a Cloud Storage client
func NewStager(ctx context.Context, cfg Config, log *zap.Logger) (*Stager, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "staging bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err == nil {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create storage client")
	}

	s := newStager(storageBucket{handle: client.Bucket(cfg.Bucket)}, cfg, log)
	s.client = client
	return s, nil
}

func newStager(b bucket, cfg Config, log *zap.Logger) *Stager {
	return &Stager{
		bucket: b,
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
		logger: log.With(zap.String("component", "gcs_stager")),
	}
}

// Stage compresses ndjson and writes it as a new object for object. It returns
// the gs:// URI of the written object.
func (s *Stager) Stage(ctx context.Context, object string, ndjson []byte) (string, error) {
	compressed, err := Compress(ndjson)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to compress batch")
	}

	name := ObjectPath(s.prefix, object, s.now().UTC(), uuid.NewString())
	w := s.bucket.NewWriter(ctx, name, map[string]string{
		"object":  object,
		"created": s.now().UTC().Format(time.RFC3339),
	})

	if _, err := io.Copy(w, bytes.NewReader(compressed)); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to write to GCS").
			WithDetail("object", name)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "failed to close GCS writer").
			WithDetail("object", name)
	}

	uri := stringpool.Concat("gs://", s.name, "/", name)
	s.logger.With(logger.ContextFields(ctx)...).Info("batch staged",
		zap.String("uri", uri),
		zap.Int("raw_bytes", len(ndjson)),
		zap.Int("compressed_bytes", len(compressed)))
	return uri, nil
}

// Close releases the storage client
func (s *Stager) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ObjectPath returns <prefix>/<object>/<YYYY-MM-DD>/<id>.json.gz. An empty
// prefix is omitted.
func ObjectPath(prefix, object string, day time.Time, id string) string {
	ub := stringpool.NewURLBuilder(prefix)
	defer ub.Close()

	path := ub.AddPath(object, day.Format("2006-01-02"), id+fileExtension).String()
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}

// Compress gzips data
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
