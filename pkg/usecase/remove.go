package usecase

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

// RemoveContent deletes the content directory of id and its index entry. Removing an
// id that is not cached succeeds.
func (c *offlineCache) RemoveContent(ctx context.Context, id string) bool {
	start := time.Now()
	err := c.removeContent(ctx, id)
	c.observer.RecordRemove(time.Since(start), err)
	if err != nil {
		errutil.Handle(ctx, err, "Failed to remove content")
		return false
	}
	return true
}

func (c *offlineCache) removeContent(ctx context.Context, id string) error {
	logger := ctxlog.From(ctx).With("id", id)

	// An id that cannot name a content directory was never cached.
	if err := model.ValidateContentID(id); err != nil {
		logger.Debug("Skip removal of invalid content id", "reason", err.Error())
		return nil
	}
	if c.isReserved(c.contentDir(id)) {
		logger.Warn("Skip removal of reserved directory", "path", c.contentDir(id))
		return nil
	}

	c.mu.Lock()
	removed, err := c.removeLocked(ctx, id)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if removed {
		logger.Info("Removed content")
	} else {
		logger.Debug("Content was not cached")
	}

	c.syncRemoteFlag(ctx, id, model.CacheFlag{IsDownloaded: false})
	return nil
}

// removeLocked reports whether an index entry was deleted. Callers hold c.mu.
func (c *offlineCache) removeLocked(ctx context.Context, id string) (bool, error) {
	dir := c.contentDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return false, goerr.Wrap(err, "failed to delete content directory", goerr.V("path", dir))
	}

	idx, err := c.loadIndex(ctx)
	if err != nil {
		return false, err
	}
	if !idx.Delete(id) {
		return false, nil
	}
	if err := c.saveIndex(ctx, idx); err != nil {
		return false, err
	}
	return true, nil
}
