package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/types"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/fetcher"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/kvstore"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/usecase"
)

// Cache holds the local cache configuration
type Cache struct {
	RootDir      string
	IndexDir     string
	IndexKey     string
	MaxParallel  int
	FetchTimeout time.Duration
	FetchRetries int
}

// Flags returns CLI flags for cache configuration
func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "root-dir",
			Usage:       "Directory holding downloaded media (default: <user cache dir>/offlinecache/media)",
			Destination: &c.RootDir,
			Sources:     cli.EnvVars(types.EnvPrefix + "ROOT_DIR"),
		},
		&cli.StringFlag{
			Name:        "index-dir",
			Usage:       "Directory holding the cache index (default: <user cache dir>/offlinecache/state)",
			Destination: &c.IndexDir,
			Sources:     cli.EnvVars(types.EnvPrefix + "INDEX_DIR"),
		},
		&cli.StringFlag{
			Name:        "index-key",
			Usage:       "Storage key of the cache index",
			Value:       usecase.DefaultIndexKey,
			Destination: &c.IndexKey,
			Sources:     cli.EnvVars(types.EnvPrefix + "INDEX_KEY"),
		},
		&cli.IntFlag{
			Name:        "max-parallel",
			Usage:       "Concurrent media fetches per content (0 for unbounded)",
			Value:       4,
			Destination: &c.MaxParallel,
			Sources:     cli.EnvVars(types.EnvPrefix + "MAX_PARALLEL"),
		},
		&cli.DurationFlag{
			Name:        "fetch-timeout",
			Usage:       "Timeout of a single media fetch (0 for none)",
			Value:       5 * time.Minute,
			Destination: &c.FetchTimeout,
			Sources:     cli.EnvVars(types.EnvPrefix + "FETCH_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:        "fetch-retries",
			Usage:       "Retries of a failed HTTP media fetch",
			Value:       0,
			Destination: &c.FetchRetries,
			Sources:     cli.EnvVars(types.EnvPrefix + "FETCH_RETRIES"),
		},
	}
}

// ApplyFile fills values from the [cache] table for flags that were not set
func (c *Cache) ApplyFile(f *File, isSet IsSet) error {
	if f == nil {
		return nil
	}
	setString(&c.RootDir, f.Cache.RootDir, "root-dir", isSet)
	setString(&c.IndexDir, f.Cache.IndexDir, "index-dir", isSet)
	setString(&c.IndexKey, f.Cache.IndexKey, "index-key", isSet)
	setInt(&c.MaxParallel, f.Cache.MaxParallel, "max-parallel", isSet)
	setInt(&c.FetchRetries, f.Cache.FetchRetries, "fetch-retries", isSet)

	if f.Cache.FetchTimeout != "" && !isSet("fetch-timeout") {
		d, err := time.ParseDuration(f.Cache.FetchTimeout)
		if err != nil {
			return goerr.Wrap(err, "invalid cache.fetch_timeout", goerr.V("value", f.Cache.FetchTimeout))
		}
		c.FetchTimeout = d
	}
	return nil
}

// Dirs resolves the media root and index directories, defaulting to the user cache dir.
// The index directory must not overlap the media root: orphan cleanup deletes
// unknown directories under the root.
func (c *Cache) Dirs() (rootDir, indexDir string, err error) {
	rootDir, indexDir = c.RootDir, c.IndexDir
	if rootDir == "" || indexDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", "", goerr.Wrap(err, "failed to resolve user cache dir; set --root-dir and --index-dir")
		}
		if rootDir == "" {
			rootDir = filepath.Join(base, types.AppName, "media")
		}
		if indexDir == "" {
			indexDir = filepath.Join(base, types.AppName, "state")
		}
	}

	if err := checkOverlap(rootDir, indexDir); err != nil {
		return "", "", err
	}
	return rootDir, indexDir, nil
}

func checkOverlap(rootDir, indexDir string) error {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve root dir", goerr.V("root_dir", rootDir))
	}
	absIndex, err := filepath.Abs(indexDir)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve index dir", goerr.V("index_dir", indexDir))
	}

	if within(absRoot, absIndex) || within(absIndex, absRoot) {
		return goerr.New("--index-dir and --root-dir must not contain each other",
			goerr.V("root_dir", absRoot),
			goerr.V("index_dir", absIndex),
		)
	}
	return nil
}

// within reports whether path equals dir or lies under it
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NewKVStore creates the file-backed store of the cache index
func (c *Cache) NewKVStore() (*kvstore.File, error) {
	_, indexDir, err := c.Dirs()
	if err != nil {
		return nil, err
	}
	return kvstore.NewFile(indexDir), nil
}

// NewHTTPFetcher creates the http(s) media fetcher
func (c *Cache) NewHTTPFetcher(logger *slog.Logger) *fetcher.HTTP {
	return fetcher.NewHTTP(
		fetcher.WithRetryMax(c.FetchRetries),
		fetcher.WithLogger(logger),
	)
}

// UseCaseOptions returns the cache tuning options
func (c *Cache) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithIndexKey(c.IndexKey),
		usecase.WithMaxParallel(c.MaxParallel),
		usecase.WithFetchTimeout(c.FetchTimeout),
	}
}
