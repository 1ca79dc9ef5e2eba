package usecase

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

// loadIndex reads the index blob. A key that was never written is an empty index.
func (c *offlineCache) loadIndex(ctx context.Context) (*model.CacheIndex, error) {
	blob, found, err := c.kv.Get(ctx, c.indexKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read cache index", goerr.V("key", c.indexKey))
	}

	idx := model.NewCacheIndex()
	if !found || blob == "" {
		return idx, nil
	}
	if err := json.Unmarshal([]byte(blob), idx); err != nil {
		return nil, goerr.Wrap(err, "cache index is corrupt", goerr.V("key", c.indexKey))
	}
	return idx, nil
}

// saveIndex persists the whole index as one blob. Callers hold c.mu.
func (c *offlineCache) saveIndex(ctx context.Context, idx *model.CacheIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return goerr.Wrap(err, "failed to encode cache index", goerr.V("key", c.indexKey))
	}
	if err := c.kv.Set(ctx, c.indexKey, string(data)); err != nil {
		return goerr.Wrap(err, "failed to persist cache index",
			goerr.V("key", c.indexKey),
			goerr.V("entries", idx.Len()),
		)
	}
	c.observer.SetCachedContents(idx.Len())
	return nil
}

// queryIndex serves the read-only operations: an unreadable index is reported and
// answered as empty.
func (c *offlineCache) queryIndex(ctx context.Context) *model.CacheIndex {
	idx, err := c.loadIndex(ctx)
	if err != nil {
		errutil.Handle(ctx, err, "Failed to load cache index")
		return model.NewCacheIndex()
	}
	return idx
}
