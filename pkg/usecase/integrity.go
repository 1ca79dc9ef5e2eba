package usecase

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

// VerifyCacheIntegrity evicts index entries whose files are gone from disk and,
// depending on opts, entries whose remote document was deleted and directories
// under the root that no entry references.
func (c *offlineCache) VerifyCacheIntegrity(ctx context.Context, opts model.VerifyOptions) (*model.IntegrityReport, bool) {
	report, err := c.verifyCacheIntegrity(ctx, opts)
	if err != nil {
		errutil.Handle(ctx, err, "Failed to verify cache integrity")
		return report, false
	}
	return report, true
}

func (c *offlineCache) verifyCacheIntegrity(ctx context.Context, opts model.VerifyOptions) (*model.IntegrityReport, error) {
	logger := ctxlog.From(ctx)
	report := &model.IntegrityReport{
		Evicted:        []model.EvictedContent{},
		RemovedOrphans: []string{},
	}

	// Remote lookups run before taking the lock so downloads are not blocked on the network.
	var remoteGone map[string]bool
	if opts.CheckRemote && c.records != nil {
		snapshot, err := c.loadIndex(ctx)
		if err != nil {
			return report, err
		}
		remoteGone = c.findRemoteDeleted(ctx, snapshot.IDs())
	}

	c.mu.Lock()
	evicted, err := c.evictLocked(ctx, report, remoteGone)
	if err == nil && opts.RemoveOrphans {
		err = c.removeOrphansLocked(ctx, report)
	}
	c.mu.Unlock()
	if err != nil {
		return report, err
	}

	for _, ev := range evicted {
		logger.Info("Evicted cached content", "id", ev.ID, "reason", ev.Reason, "path", ev.Path)
		if ev.Reason != model.EvictReasonRemoteDeleted {
			c.syncRemoteFlag(ctx, ev.ID, model.CacheFlag{IsDownloaded: false})
		}
	}

	logger.Info("Verified cache integrity",
		"checked", report.Checked,
		"evicted", len(report.Evicted),
		"orphans", len(report.RemovedOrphans),
	)
	return report, nil
}

func (c *offlineCache) findRemoteDeleted(ctx context.Context, ids []string) map[string]bool {
	gone := make(map[string]bool)
	for _, id := range ids {
		_, err := c.records.GetDescriptor(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrRecordNotFound):
			gone[id] = true
		default:
			errutil.Warn(ctx, err, "Failed to look up remote content document")
		}
	}
	return gone
}

// evictLocked drops broken entries from the index and deletes what is left of their
// directories. Callers hold c.mu.
func (c *offlineCache) evictLocked(ctx context.Context, report *model.IntegrityReport, remoteGone map[string]bool) ([]model.EvictedContent, error) {
	idx, err := c.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	report.Checked = idx.Len()

	var evicted []model.EvictedContent
	for _, rec := range idx.Records() {
		ev, broken := c.checkRecord(rec)
		if !broken && remoteGone[rec.ID] {
			ev, broken = model.EvictedContent{ID: rec.ID, Reason: model.EvictReasonRemoteDeleted}, true
		}
		if !broken {
			continue
		}

		dir := c.contentDir(rec.ID)
		if !c.isReserved(dir) {
			if err := os.RemoveAll(dir); err != nil {
				return nil, goerr.Wrap(err, "failed to delete content directory", goerr.V("path", dir))
			}
		}
		idx.Delete(rec.ID)
		evicted = append(evicted, ev)
	}

	if len(evicted) == 0 {
		return nil, nil
	}
	if err := c.saveIndex(ctx, idx); err != nil {
		return nil, err
	}
	report.Evicted = append(report.Evicted, evicted...)
	return evicted, nil
}

func (c *offlineCache) checkRecord(rec *model.OfflineContentRecord) (model.EvictedContent, bool) {
	dir := c.contentDir(rec.ID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return model.EvictedContent{ID: rec.ID, Reason: model.EvictReasonMissingDirectory, Path: dir}, true
	}
	for _, m := range rec.MediaURLs {
		if _, err := os.Stat(m.LocalPath); err != nil {
			return model.EvictedContent{ID: rec.ID, Reason: model.EvictReasonMissingFile, Path: m.LocalPath}, true
		}
	}
	return model.EvictedContent{}, false
}

// removeOrphansLocked deletes directories under the root that no index entry owns and
// staging leftovers older than stagingGracePeriod. Plain files are left alone.
// Callers hold c.mu.
func (c *offlineCache) removeOrphansLocked(ctx context.Context, report *model.IntegrityReport) error {
	idx, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(c.rootDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to list download root", goerr.V("root", c.rootDir))
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == stagingDirName {
			removed, err := c.removeStaleStaging(ctx)
			if err != nil {
				return err
			}
			report.RemovedOrphans = append(report.RemovedOrphans, removed...)
			continue
		}
		if idx.Has(name) {
			continue
		}

		dir := filepath.Join(c.rootDir, name)
		if c.isReserved(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return goerr.Wrap(err, "failed to delete orphan directory", goerr.V("path", dir))
		}
		ctxlog.From(ctx).Info("Removed orphan directory", "path", dir)
		report.RemovedOrphans = append(report.RemovedOrphans, dir)
	}
	return nil
}

func (c *offlineCache) removeStaleStaging(ctx context.Context) ([]string, error) {
	root := c.stagingRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list staging root", goerr.V("path", root))
	}

	var removed []string
	cutoff := time.Now().Add(-stagingGracePeriod)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, goerr.Wrap(err, "failed to delete stale staging entry", goerr.V("path", p))
		}
		ctxlog.From(ctx).Info("Removed stale staging entry", "path", p)
		removed = append(removed, p)
	}
	return removed, nil
}
