package interfaces

import (
	"context"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
)

// OfflineCacheUseCase is the offline content cache exposed to the rest of the application.
// Mutating operations report success as a boolean; causes are logged, never returned.
type OfflineCacheUseCase interface {
	// EnsureStorageReady creates the download root if it is missing
	EnsureStorageReady(ctx context.Context)

	// DownloadContent fetches every media file of d and records it in the cache index
	DownloadContent(ctx context.Context, d *model.ContentDescriptor) bool

	// RemoveContent deletes the cached files and index entry of id
	RemoveContent(ctx context.Context, id string) bool

	// IsContentDownloaded reports whether id is present in the cache index
	IsContentDownloaded(ctx context.Context, id string) bool

	// GetOfflineContent returns the cached record of id
	GetOfflineContent(ctx context.Context, id string) (*model.OfflineContentRecord, bool)

	// GetDownloadedContentList returns every cached record in insertion order
	GetDownloadedContentList(ctx context.Context) []*model.OfflineContentRecord

	// VerifyCacheIntegrity reconciles the cache index with the filesystem and, optionally, the remote store
	VerifyCacheIntegrity(ctx context.Context, opts model.VerifyOptions) (*model.IntegrityReport, bool)
}
