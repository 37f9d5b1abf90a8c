// Package objectstore stores and retrieves crawled page bodies in an
// S3-compatible bucket via minio-go, the Go counterpart to the rust-s3
// client original_source/services/storage.rs wraps. Bodies are keyed by a
// time-ordered UUID so that listing/range operations stay cheap (spec
// §4.2).
package objectstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lalasearch/crawlcore/internal/model"
)

// Config configures the S3-compatible backend (spec §6).
type Config struct {
	Endpoint        string
	Bucket          string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	CompressContent bool
	CompressMinSize int
}

// Client uploads and fetches page bodies.
type Client struct {
	mc     *minio.Client
	bucket string
	cfg    Config
	log    *slog.Logger
}

// New connects a minio.Client to the configured endpoint and verifies the
// bucket exists.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to create client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("objectstore: failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &Client{mc: mc, bucket: cfg.Bucket, cfg: cfg, log: log}, nil
}

// Put uploads body, choosing gzip compression when it is enabled and body
// exceeds CompressMinSize (spec §4.2 step 1). url is informational only and
// is not persisted. Returns the generated storage id and the chosen
// compression type.
func (c *Client) Put(ctx context.Context, body []byte, url string) (string, model.StorageCompression, error) {
	compression := model.CompressionNone
	data := body
	if c.cfg.CompressContent && len(body) > c.cfg.CompressMinSize {
		compressed, err := gzipCompress(body)
		if err != nil {
			return "", "", fmt.Errorf("objectstore: compress: %w", err)
		}
		data = compressed
		compression = model.CompressionGzip
	}

	storageID, err := uuid.NewV7()
	if err != nil {
		return "", "", fmt.Errorf("objectstore: generate storage id: %w", err)
	}

	key := fmt.Sprintf("%s.%s", storageID.String(), compression.FileExtension())
	_, err = c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: compression.ContentType()})
	if err != nil {
		return "", "", fmt.Errorf("objectstore: upload %q: %w", key, err)
	}

	c.log.Debug("uploaded object", "key", key, "bytes", len(data), "compression", compression, "url", url)
	return storageID.String(), compression, nil
}

// Get retrieves and decompresses a body by storage id and compression tag
// (spec §4.2 step 5). A decode failure surfaces as a UTF-8 error.
func (c *Client) Get(ctx context.Context, storageID string, compression model.StorageCompression) (string, error) {
	key := fmt.Sprintf("%s.%s", storageID, compression.FileExtension())
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("objectstore: fetch %q: %w", key, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("objectstore: read %q: %w", key, err)
	}

	if compression == model.CompressionGzip {
		raw, err = gzipDecompress(raw)
		if err != nil {
			return "", fmt.Errorf("objectstore: decompress %q: %w", key, err)
		}
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("objectstore: content for %q is not valid UTF-8", key)
	}
	return string(raw), nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
