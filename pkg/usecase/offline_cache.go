package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

// DefaultIndexKey is the storage key of the cache index blob
const DefaultIndexKey = "offline_content"

// stagingDirName is the directory under the download root that holds in-flight downloads
const stagingDirName = ".staging"

// stagingGracePeriod protects in-flight staging directories from orphan removal
const stagingGracePeriod = time.Hour

type offlineCache struct {
	rootDir      string
	indexKey     string
	kv           interfaces.KVStore
	fetcher      interfaces.MediaFetcher
	records      interfaces.RecordStore
	observer     interfaces.CacheObserver
	clock        func() time.Time
	maxParallel  int
	fetchTimeout time.Duration
	reserved     []string

	// mu serializes every read-modify-write of the index together with the
	// directory moves that must agree with it.
	mu sync.Mutex
}

// Option is a functional option for the offline cache
type Option func(*offlineCache)

// WithRecordStore enables mirroring the cache flag into the remote content document
func WithRecordStore(records interfaces.RecordStore) Option {
	return func(c *offlineCache) {
		c.records = records
	}
}

// WithObserver sets the telemetry sink
func WithObserver(observer interfaces.CacheObserver) Option {
	return func(c *offlineCache) {
		c.observer = observer
	}
}

// WithIndexKey overrides the storage key of the index blob
func WithIndexKey(key string) Option {
	return func(c *offlineCache) {
		c.indexKey = key
	}
}

// WithClock sets the time source used for downloadedAt
func WithClock(clock func() time.Time) Option {
	return func(c *offlineCache) {
		c.clock = clock
	}
}

// WithMaxParallel bounds concurrent media fetches per download (0 means unbounded)
func WithMaxParallel(n int) Option {
	return func(c *offlineCache) {
		c.maxParallel = n
	}
}

// WithFetchTimeout bounds each media fetch (0 means no timeout)
func WithFetchTimeout(d time.Duration) Option {
	return func(c *offlineCache) {
		c.fetchTimeout = d
	}
}

// WithReservedDirs marks directories, such as a file-backed index store, that may live
// under the download root. They are never treated as content or orphans.
func WithReservedDirs(dirs ...string) Option {
	return func(c *offlineCache) {
		for _, dir := range dirs {
			if abs, err := filepath.Abs(dir); err == nil {
				c.reserved = append(c.reserved, filepath.Clean(abs))
			}
		}
	}
}

// NewOfflineCache creates the offline content cache rooted at rootDir. The index blob
// is kept in kv under DefaultIndexKey unless WithIndexKey is given.
func NewOfflineCache(rootDir string, kv interfaces.KVStore, fetcher interfaces.MediaFetcher, opts ...Option) interfaces.OfflineCacheUseCase {
	if abs, err := filepath.Abs(rootDir); err == nil {
		rootDir = abs
	}

	c := &offlineCache{
		rootDir:  filepath.Clean(rootDir),
		indexKey: DefaultIndexKey,
		kv:       kv,
		fetcher:  fetcher,
		observer: nopObserver{},
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *offlineCache) contentDir(id string) string {
	return filepath.Join(c.rootDir, id)
}

func (c *offlineCache) stagingRoot() string {
	return filepath.Join(c.rootDir, stagingDirName)
}

// isReserved reports whether deleting or replacing dir would touch a reserved directory
func (c *offlineCache) isReserved(dir string) bool {
	for _, r := range c.reserved {
		rel, err := filepath.Rel(dir, r)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// EnsureStorageReady creates the download root if it is missing and publishes the
// number of cached contents. Failures are only logged; a missing root surfaces later
// as a failed download.
func (c *offlineCache) EnsureStorageReady(ctx context.Context) {
	c.ensureRoot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.loadIndex(ctx)
	if err != nil {
		errutil.Handle(ctx, err, "Failed to load cache index")
		return
	}
	c.observer.SetCachedContents(idx.Len())
}

func (c *offlineCache) ensureRoot(ctx context.Context) {
	logger := ctxlog.From(ctx)

	info, err := os.Stat(c.rootDir)
	if err == nil {
		if !info.IsDir() {
			errutil.Handle(ctx, goerr.New("download root is not a directory", goerr.V("root", c.rootDir)),
				"failed to prepare offline storage")
		}
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to stat download root", goerr.V("root", c.rootDir)),
			"failed to prepare offline storage")
		return
	}

	if err := os.MkdirAll(c.rootDir, 0o755); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to create download root", goerr.V("root", c.rootDir)),
			"failed to prepare offline storage")
		return
	}
	logger.Info("Created download root", "root", c.rootDir)
}

// IsContentDownloaded reports whether id is in the cache index
func (c *offlineCache) IsContentDownloaded(ctx context.Context, id string) bool {
	idx := c.queryIndex(ctx)
	return idx.Has(id)
}

// GetOfflineContent returns the cached record of id
func (c *offlineCache) GetOfflineContent(ctx context.Context, id string) (*model.OfflineContentRecord, bool) {
	idx := c.queryIndex(ctx)
	return idx.Get(id)
}

// GetDownloadedContentList returns every cached record in insertion order
func (c *offlineCache) GetDownloadedContentList(ctx context.Context) []*model.OfflineContentRecord {
	idx := c.queryIndex(ctx)
	return idx.Records()
}

// syncRemoteFlag mirrors the cache state into the remote content document. It never
// fails the calling operation.
func (c *offlineCache) syncRemoteFlag(ctx context.Context, id string, flag model.CacheFlag) {
	if c.records == nil {
		return
	}

	err := c.records.UpdateCacheFlag(ctx, id, flag)
	c.observer.RecordRemoteSync(err)
	if err == nil {
		ctxlog.From(ctx).Debug("Mirrored cache flag", "id", id, "is_downloaded", flag.IsDownloaded)
		return
	}

	if errors.Is(err, model.ErrRecordNotFound) {
		ctxlog.From(ctx).Warn("Remote content document not found, cache flag not mirrored", "id", id)
		return
	}
	errutil.Warn(ctx, err, "Failed to mirror cache flag to remote record")
}

type nopObserver struct{}

func (nopObserver) RecordDownload(time.Duration, int64, error) {}
func (nopObserver) RecordRemove(time.Duration, error)          {}
func (nopObserver) RecordRemoteSync(error)                     {}
func (nopObserver) SetCachedContents(int)                      {}
