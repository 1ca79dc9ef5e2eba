package fetcher

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// GCS fetches gs://bucket/object URLs from Cloud Storage (the object store behind
// Firebase Storage).
type GCS struct {
	client *storage.Client
}

// NewGCS creates a Cloud Storage fetcher
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &GCS{client: client}, nil
}

// Close releases the underlying client
func (f *GCS) Close() error {
	return f.client.Close()
}

// Fetch opens a reader on the object named by rawURL
func (f *GCS) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, object, err := ParseGSURL(rawURL)
	if err != nil {
		return nil, err
	}

	r, err := f.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(err, "media object does not exist",
				goerr.V("bucket", bucket),
				goerr.V("object", object),
			)
		}
		return nil, goerr.Wrap(err, "failed to open media object",
			goerr.V("bucket", bucket),
			goerr.V("object", object),
		)
	}
	return r, nil
}

// ParseGSURL splits gs://bucket/path/to/object into bucket and object name
func ParseGSURL(rawURL string) (bucket, object string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", goerr.Wrap(err, "invalid object URL", goerr.V("url", rawURL))
	}
	if u.Scheme != "gs" {
		return "", "", goerr.New("object URL must use gs scheme", goerr.V("url", rawURL))
	}

	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", goerr.New("object URL must name a bucket and an object", goerr.V("url", rawURL))
	}
	return u.Host, object, nil
}
