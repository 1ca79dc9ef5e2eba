package kvstore_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/kvstore"
)

func testStore(t *testing.T, store interfaces.KVStore) {
	ctx := context.Background()

	_, found, err := store.Get(ctx, "offline_content")
	gt.NoError(t, err)
	gt.False(t, found)

	gt.NoError(t, store.Set(ctx, "offline_content", `{"a":1}`))
	v, found, err := store.Get(ctx, "offline_content")
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Value(t, v).Equal(`{"a":1}`)

	gt.NoError(t, store.Set(ctx, "offline_content", `{}`))
	v, _, err = store.Get(ctx, "offline_content")
	gt.NoError(t, err)
	gt.Value(t, v).Equal(`{}`)
}

func TestMemory(t *testing.T) {
	testStore(t, kvstore.NewMemory())
}

func TestFile(t *testing.T) {
	t.Run("get and set", func(t *testing.T) {
		testStore(t, kvstore.NewFile(filepath.Join(t.TempDir(), "kv")))
	})

	t.Run("directory is created lazily", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "kv")
		store := kvstore.NewFile(dir)

		_, err := os.Stat(dir)
		gt.True(t, os.IsNotExist(err))

		gt.NoError(t, store.Set(context.Background(), "offline_content", "x"))
		info, err := os.Stat(dir)
		gt.NoError(t, err)
		gt.True(t, info.IsDir())
	})

	t.Run("no temporary files are left behind", func(t *testing.T) {
		dir := t.TempDir()
		store := kvstore.NewFile(dir)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				gt.NoError(t, store.Set(ctx, "offline_content", "value"))
			}()
		}
		wg.Wait()

		entries, err := os.ReadDir(dir)
		gt.NoError(t, err)
		gt.A(t, entries).Length(1)
		gt.Value(t, entries[0].Name()).Equal("offline_content")
	})

	t.Run("rejects keys that escape the directory", func(t *testing.T) {
		store := kvstore.NewFile(t.TempDir())
		ctx := context.Background()

		for _, key := range []string{"", "../index", "a/b", ".hidden"} {
			gt.Error(t, store.Set(ctx, key, "v"))
			_, _, err := store.Get(ctx, key)
			gt.Error(t, err)
		}
	})
}
