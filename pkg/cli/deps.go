package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/cli/config"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/fetcher"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/usecase"
)

// cacheDeps holds the flags shared by every command that opens the cache
type cacheDeps struct {
	cacheCfg    config.Cache
	firebaseCfg config.Firebase
}

func (d *cacheDeps) flags() []cli.Flag {
	return append(d.cacheCfg.Flags(), d.firebaseCfg.Flags()...)
}

// cacheRuntime is an opened cache with its optional remote record store
type cacheRuntime struct {
	cache   interfaces.OfflineCacheUseCase
	records interfaces.RecordStore
	closers []func() error
}

func (r *cacheRuntime) Close(ctx context.Context) {
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close client", "error", err)
		}
	}
}

// open wires the cache use case from flags and the config file. Firestore and GCS are
// only connected when a Firebase project is configured.
func (d *cacheDeps) open(ctx context.Context, c *cli.Command, file *config.File, extra ...usecase.Option) (*cacheRuntime, error) {
	logger := ctxlog.From(ctx)

	if err := d.cacheCfg.ApplyFile(file, c.IsSet); err != nil {
		return nil, err
	}
	d.firebaseCfg.ApplyFile(file, c.IsSet)

	rootDir, indexDir, err := d.cacheCfg.Dirs()
	if err != nil {
		return nil, err
	}
	kv, err := d.cacheCfg.NewKVStore()
	if err != nil {
		return nil, err
	}

	rt := &cacheRuntime{}
	router := fetcher.NewRouter().Register(d.cacheCfg.NewHTTPFetcher(logger), "http", "https")
	opts := append(d.cacheCfg.UseCaseOptions(), usecase.WithReservedDirs(indexDir))
	opts = append(opts, extra...)

	if d.firebaseCfg.Enabled() {
		records, err := d.firebaseCfg.NewRecordStore(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to connect to Firestore")
		}
		rt.closers = append(rt.closers, records.Close)
		rt.records = records
		opts = append(opts, usecase.WithRecordStore(records))

		gcs, err := d.firebaseCfg.NewGCSFetcher(ctx)
		if err != nil {
			rt.Close(ctx)
			return nil, goerr.Wrap(err, "failed to connect to Cloud Storage")
		}
		rt.closers = append(rt.closers, gcs.Close)
		router.Register(gcs, "gs")
	} else {
		logger.Debug("Firebase project not configured, remote sync disabled")
	}

	logger.Debug("Opened offline cache",
		"root_dir", rootDir,
		"index_dir", kv.Dir(),
		"remote", d.firebaseCfg.Enabled(),
	)

	rt.cache = usecase.NewOfflineCache(rootDir, kv, router, opts...)
	return rt, nil
}
