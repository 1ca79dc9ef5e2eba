package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
)

// KVStore persists string blobs under string keys
type KVStore interface {
	// Get returns the value stored under key; found is false when the key was never set
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key, replacing any previous value atomically
	Set(ctx context.Context, key, value string) error
}

// MediaFetcher retrieves the raw bytes of a remote media file
type MediaFetcher interface {
	// Fetch opens the media at url. The caller closes the returned reader.
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// RecordStore is the remote document store holding content descriptors
type RecordStore interface {
	// UpdateCacheFlag partially updates the isDownloaded/lastDownloaded fields of a content document
	UpdateCacheFlag(ctx context.Context, id string, flag model.CacheFlag) error

	// GetDescriptor loads a content document. It returns an error wrapping model.ErrRecordNotFound when the document does not exist.
	GetDescriptor(ctx context.Context, id string) (*model.ContentDescriptor, error)
}

// CacheObserver receives telemetry for cache operations
type CacheObserver interface {
	RecordDownload(duration time.Duration, sizeBytes int64, err error)
	RecordRemove(duration time.Duration, err error)
	RecordRemoteSync(err error)
	SetCachedContents(n int)
}
