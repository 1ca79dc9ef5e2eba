package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/utils/errutil"
)

// DownloadContent fetches every media URL of d and records the content in the index.
// It returns false if any step fails; in that case neither the index nor an earlier
// cached copy of the same id is modified.
func (c *offlineCache) DownloadContent(ctx context.Context, d *model.ContentDescriptor) bool {
	start := time.Now()
	size, err := c.downloadContent(ctx, d)
	c.observer.RecordDownload(time.Since(start), size, err)
	if err != nil {
		errutil.Handle(ctx, err, "Failed to download content")
		return false
	}
	return true
}

func (c *offlineCache) downloadContent(ctx context.Context, d *model.ContentDescriptor) (int64, error) {
	if d == nil {
		return 0, goerr.New("content descriptor is nil")
	}
	if err := model.ValidateContentID(d.ID); err != nil {
		return 0, err
	}

	finalDir := c.contentDir(d.ID)
	if c.isReserved(finalDir) {
		return 0, goerr.New("content id collides with a reserved directory",
			goerr.V("id", d.ID),
			goerr.V("path", finalDir),
		)
	}

	logger := ctxlog.From(ctx).With("id", d.ID)
	logger.Info("Downloading content", "media_count", len(d.MediaURLs))

	c.ensureRoot(ctx)

	// Media lands in a private staging directory first so a failed download never
	// touches the live content directory.
	if err := os.MkdirAll(c.stagingRoot(), 0o755); err != nil {
		return 0, goerr.Wrap(err, "failed to create staging root", goerr.V("path", c.stagingRoot()))
	}
	// Named by uuid alone so any id that fits as a directory name also fits here.
	stagingDir := filepath.Join(c.stagingRoot(), uuid.NewString())
	if err := os.Mkdir(stagingDir, 0o755); err != nil {
		return 0, goerr.Wrap(err, "failed to create staging directory", goerr.V("path", stagingDir))
	}
	defer func() {
		// After a successful commit the staging path no longer exists.
		if err := os.RemoveAll(stagingDir); err != nil {
			logger.Warn("Failed to clean up staging directory", "path", stagingDir, "error", err)
		}
	}()

	names := mediaFileNames(d.MediaURLs)
	entries := make([]model.CachedMediaEntry, len(d.MediaURLs))
	sizes := make([]int64, len(d.MediaURLs))

	eg, egCtx := errgroup.WithContext(ctx)
	if c.maxParallel > 0 {
		eg.SetLimit(c.maxParallel)
	}
	for i, mediaURL := range d.MediaURLs {
		eg.Go(func() error {
			n, err := c.fetchMedia(egCtx, mediaURL, filepath.Join(stagingDir, names[i]))
			if err != nil {
				return goerr.Wrap(err, "failed to fetch media",
					goerr.V("id", d.ID),
					goerr.V("url", mediaURL),
					goerr.V("index", i),
				)
			}
			sizes[i] = n
			entries[i] = model.CachedMediaEntry{
				RemoteURL: mediaURL,
				LocalPath: filepath.Join(finalDir, names[i]),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range sizes {
		total += n
	}

	downloadedAt := c.clock()
	rec := model.NewOfflineContentRecord(d, entries, downloadedAt)

	c.mu.Lock()
	err := c.commitLocked(ctx, stagingDir, finalDir, rec)
	c.mu.Unlock()
	if err != nil {
		return total, err
	}

	logger.Info("Downloaded content", "media_count", len(entries), "bytes", total)

	c.syncRemoteFlag(ctx, d.ID, model.CacheFlag{
		IsDownloaded:   true,
		LastDownloaded: &downloadedAt,
	})
	return total, nil
}

// commitLocked moves the staged media into place and persists the index. If the index
// cannot be written the previous directory is restored. Callers hold c.mu.
func (c *offlineCache) commitLocked(ctx context.Context, stagingDir, finalDir string, rec *model.OfflineContentRecord) error {
	logger := ctxlog.From(ctx)

	idx, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}

	var backup string
	if _, err := os.Stat(finalDir); err == nil {
		backup = stagingDir + ".old"
		if err := os.Rename(finalDir, backup); err != nil {
			return goerr.Wrap(err, "failed to move previous content aside", goerr.V("path", finalDir))
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to stat content directory", goerr.V("path", finalDir))
	}

	restore := func() {
		if backup == "" {
			return
		}
		if err := os.Rename(backup, finalDir); err != nil {
			logger.Error("Failed to restore previous content", "path", finalDir, "error", err)
		}
	}

	if err := os.Rename(stagingDir, finalDir); err != nil {
		restore()
		return goerr.Wrap(err, "failed to move staged media into place",
			goerr.V("from", stagingDir),
			goerr.V("to", finalDir),
		)
	}

	idx.Put(rec)
	if err := c.saveIndex(ctx, idx); err != nil {
		if rerr := os.Rename(finalDir, stagingDir); rerr != nil {
			logger.Error("Failed to roll back staged media", "path", finalDir, "error", rerr)
		}
		restore()
		return err
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			logger.Warn("Failed to remove previous content", "path", backup, "error", err)
		}
	}
	return nil
}

func (c *offlineCache) fetchMedia(ctx context.Context, mediaURL, dst string) (int64, error) {
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	body, err := c.fetcher.Fetch(ctx, mediaURL)
	if err != nil {
		return 0, err
	}
	defer safeClose(ctx, body)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create media file", goerr.V("path", dst))
	}

	n, err := io.Copy(f, body)
	if err != nil {
		_ = f.Close()
		return n, goerr.Wrap(err, "failed to write media file", goerr.V("path", dst))
	}
	if err := f.Close(); err != nil {
		return n, goerr.Wrap(err, "failed to close media file", goerr.V("path", dst))
	}
	return n, nil
}

func safeClose(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		ctxlog.From(ctx).Warn("Failed to close media stream", "error", err)
	}
}

// mediaFileNames picks one file name per URL, unique within the content directory.
func mediaFileNames(urls []string) []string {
	names := make([]string, len(urls))
	seen := make(map[string]bool, len(urls))
	for i, u := range urls {
		name := mediaFileName(u, i)
		for seen[name] {
			name = fmt.Sprintf("%d-%s", i, name)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// mediaFileName takes the last path segment of the URL after percent-decoding, so a
// storage URL like .../o/images%2Fcat.png?alt=media yields "cat.png".
func mediaFileName(rawURL string, index int) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	name := path.Base(strings.ReplaceAll(p, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return fmt.Sprintf("media-%d", index)
	}
	return strings.ReplaceAll(name, "\x00", "")
}
