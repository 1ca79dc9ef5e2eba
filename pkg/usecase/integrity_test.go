package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/kvstore"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/usecase"
)

// setupIntegrity caches four contents and breaks two of them on disk
func setupIntegrity(t *testing.T, records *mockRecordStore) (string, interfaces.OfflineCacheUseCase) {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	fetcher := newMockFetcher()
	for _, id := range []string{"keep", "nodir", "nofile", "gone"} {
		fetcher.add("https://cdn.example.com/"+id+".png", id)
	}

	opts := []usecase.Option{}
	if records != nil {
		opts = append(opts, usecase.WithRecordStore(records))
	}
	uc := usecase.NewOfflineCache(root, kvstore.NewMemory(), fetcher, opts...)
	for _, id := range []string{"keep", "nodir", "nofile", "gone"} {
		gt.True(t, uc.DownloadContent(ctx, &model.ContentDescriptor{
			ID:        id,
			MediaURLs: []string{"https://cdn.example.com/" + id + ".png"},
		}))
	}

	gt.NoError(t, os.RemoveAll(filepath.Join(root, "nodir")))
	gt.NoError(t, os.Remove(filepath.Join(root, "nofile", "nofile.png")))
	return root, uc
}

func TestVerifyCacheIntegrity(t *testing.T) {
	t.Run("evicts entries with missing files", func(t *testing.T) {
		ctx := context.Background()
		records := &mockRecordStore{}
		root, uc := setupIntegrity(t, records)

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{})
		gt.True(t, ok)
		gt.Value(t, report.Checked).Equal(4)
		gt.A(t, report.Evicted).Length(2)
		gt.Value(t, report.Evicted[0].ID).Equal("nodir")
		gt.Value(t, report.Evicted[0].Reason).Equal(model.EvictReasonMissingDirectory)
		gt.Value(t, report.Evicted[1].ID).Equal("nofile")
		gt.Value(t, report.Evicted[1].Reason).Equal(model.EvictReasonMissingFile)
		gt.Value(t, report.Evicted[1].Path).Equal(filepath.Join(root, "nofile", "nofile.png"))

		gt.True(t, uc.IsContentDownloaded(ctx, "keep"))
		gt.True(t, uc.IsContentDownloaded(ctx, "gone"))
		gt.False(t, uc.IsContentDownloaded(ctx, "nodir"))
		gt.False(t, uc.IsContentDownloaded(ctx, "nofile"))

		_, err := os.Stat(filepath.Join(root, "nofile"))
		gt.True(t, errors.Is(err, os.ErrNotExist))

		upd, ok := records.lastUpdate()
		gt.True(t, ok)
		gt.Value(t, upd.ID).Equal("nofile")
		gt.False(t, upd.Flag.IsDownloaded)
	})

	t.Run("evicts entries deleted remotely", func(t *testing.T) {
		ctx := context.Background()
		records := &mockRecordStore{docs: map[string]*model.ContentDescriptor{
			"keep":   {ID: "keep"},
			"nodir":  {ID: "nodir"},
			"nofile": {ID: "nofile"},
		}}
		root, uc := setupIntegrity(t, records)

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{CheckRemote: true})
		gt.True(t, ok)
		gt.A(t, report.Evicted).Length(3)
		gt.Value(t, report.Evicted[2].ID).Equal("gone")
		gt.Value(t, report.Evicted[2].Reason).Equal(model.EvictReasonRemoteDeleted)

		gt.True(t, uc.IsContentDownloaded(ctx, "keep"))
		gt.False(t, uc.IsContentDownloaded(ctx, "gone"))
		_, err := os.Stat(filepath.Join(root, "gone"))
		gt.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("remote check without record store is skipped", func(t *testing.T) {
		ctx := context.Background()
		_, uc := setupIntegrity(t, nil)

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{CheckRemote: true})
		gt.True(t, ok)
		gt.A(t, report.Evicted).Length(2)
		gt.True(t, uc.IsContentDownloaded(ctx, "gone"))
	})

	t.Run("removes orphans and stale staging", func(t *testing.T) {
		ctx := context.Background()
		root, uc := setupIntegrity(t, nil)

		orphan := filepath.Join(root, "orphan")
		gt.NoError(t, os.MkdirAll(orphan, 0o755))
		looseFile := filepath.Join(root, "notes.txt")
		gt.NoError(t, os.WriteFile(looseFile, []byte("x"), 0o644))

		stale := filepath.Join(root, ".staging", "old-download")
		fresh := filepath.Join(root, ".staging", "in-flight")
		gt.NoError(t, os.MkdirAll(stale, 0o755))
		gt.NoError(t, os.MkdirAll(fresh, 0o755))
		past := time.Now().Add(-2 * time.Hour)
		gt.NoError(t, os.Chtimes(stale, past, past))

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{RemoveOrphans: true})
		gt.True(t, ok)
		gt.A(t, report.RemovedOrphans).Length(2)

		_, err := os.Stat(orphan)
		gt.True(t, errors.Is(err, os.ErrNotExist))
		_, err = os.Stat(stale)
		gt.True(t, errors.Is(err, os.ErrNotExist))
		_, err = os.Stat(fresh)
		gt.NoError(t, err)
		_, err = os.Stat(looseFile)
		gt.NoError(t, err)
		_, err = os.Stat(filepath.Join(root, "keep", "keep.png"))
		gt.NoError(t, err)
	})

	t.Run("healthy cache is untouched", func(t *testing.T) {
		ctx := context.Background()
		uc := usecase.NewOfflineCache(t.TempDir(), kvstore.NewMemory(), newMockFetcher())
		gt.True(t, uc.DownloadContent(ctx, &model.ContentDescriptor{ID: "a"}))

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{RemoveOrphans: true})
		gt.True(t, ok)
		gt.Value(t, report.Checked).Equal(1)
		gt.A(t, report.Evicted).Length(0)
		gt.A(t, report.RemovedOrphans).Length(0)
	})

	t.Run("index store under the root survives", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		stateDir := filepath.Join(root, "state")
		fetcher := newMockFetcher().add("https://cdn.example.com/a.png", "a")
		uc := usecase.NewOfflineCache(root, kvstore.NewFile(stateDir), fetcher,
			usecase.WithReservedDirs(stateDir))

		gt.True(t, uc.DownloadContent(ctx, &model.ContentDescriptor{
			ID:        "lesson-1",
			MediaURLs: []string{"https://cdn.example.com/a.png"},
		}))

		report, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{RemoveOrphans: true})
		gt.True(t, ok)
		gt.A(t, report.RemovedOrphans).Length(0)
		gt.True(t, uc.IsContentDownloaded(ctx, "lesson-1"))

		_, err := os.Stat(filepath.Join(stateDir, usecase.DefaultIndexKey))
		gt.NoError(t, err)
	})

	t.Run("content id naming the index store is refused", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		stateDir := filepath.Join(root, "state")
		uc := usecase.NewOfflineCache(root, kvstore.NewFile(stateDir), newMockFetcher(),
			usecase.WithReservedDirs(stateDir))

		gt.True(t, uc.DownloadContent(ctx, &model.ContentDescriptor{ID: "lesson-1"}))
		gt.False(t, uc.DownloadContent(ctx, &model.ContentDescriptor{ID: "state"}))
		gt.True(t, uc.RemoveContent(ctx, "state"))

		gt.True(t, uc.IsContentDownloaded(ctx, "lesson-1"))
		_, err := os.Stat(filepath.Join(stateDir, usecase.DefaultIndexKey))
		gt.NoError(t, err)
	})

	t.Run("corrupt index fails", func(t *testing.T) {
		ctx := context.Background()
		kv := kvstore.NewMemory()
		gt.NoError(t, kv.Set(ctx, usecase.DefaultIndexKey, "[]"))
		uc := usecase.NewOfflineCache(t.TempDir(), kv, newMockFetcher())

		_, ok := uc.VerifyCacheIntegrity(ctx, model.VerifyOptions{})
		gt.False(t, ok)
	})
}
