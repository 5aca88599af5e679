package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultObjectPrefix = "card-media"

// BucketUploader writes decoded images to a Cloud Storage bucket and hands
// back the object's public URL. Object names are generated, never derived
// from user input.
type BucketUploader struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewBucketUploader constructs an uploader for the named bucket.
func NewBucketUploader(client *storage.Client, bucket string, logger *zap.Logger) (*BucketUploader, error) {
	if client == nil {
		return nil, errors.New("media: storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("media: bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BucketUploader{
		client: client,
		bucket: bucket,
		prefix: defaultObjectPrefix,
		logger: logger,
	}, nil
}

// Upload decodes the payload, writes it as a new object, and returns the
// public object URL.
func (u *BucketUploader) Upload(ctx context.Context, base64Payload string) (string, error) {
	raw, contentType, err := decodePayload(base64Payload)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s/%s%s", u.prefix, uuid.NewString(), extensionFor(contentType))
	w := u.client.Bucket(u.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("media: write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("media: finalize object %s: %w", name, err)
	}

	u.logger.Info("media: uploaded object",
		zap.String("bucket", u.bucket),
		zap.String("object", name),
		zap.Int("bytes", len(raw)))
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, name), nil
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	// Prefer the conventional short forms.
	for _, known := range []string{".png", ".jpg", ".gif", ".webp"} {
		for _, ext := range exts {
			if ext == known {
				return ext
			}
		}
	}
	return exts[0]
}
