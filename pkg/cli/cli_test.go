package cli_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/cli"
)

func TestRun_DownloadListRemove(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sound of " + r.URL.Path))
	}))
	defer media.Close()

	ctx := context.Background()
	rootDir := filepath.Join(t.TempDir(), "media")
	indexDir := filepath.Join(t.TempDir(), "state")
	cacheFlags := []string{"--root-dir", rootDir, "--index-dir", indexDir}

	run := func(cmd string, args ...string) error {
		full := append([]string{"offlinecache", "--log-level", "error", cmd}, cacheFlags...)
		return cli.Run(ctx, append(full, args...))
	}

	gt.NoError(t, run("download", "--id", "letter-a", "--url", media.URL+"/letters/a.mp3"))

	data, err := os.ReadFile(filepath.Join(rootDir, "letter-a", "a.mp3"))
	gt.NoError(t, err)
	gt.Value(t, string(data)).Equal("sound of /letters/a.mp3")

	_, err = os.Stat(filepath.Join(indexDir, "offline_content"))
	gt.NoError(t, err)

	gt.NoError(t, run("list"))
	gt.NoError(t, run("list", "--json"))
	gt.NoError(t, run("show", "letter-a"))
	gt.NoError(t, run("verify", "--remove-orphans"))

	gt.NoError(t, run("remove", "letter-a"))
	_, err = os.Stat(filepath.Join(rootDir, "letter-a"))
	gt.True(t, os.IsNotExist(err))
	gt.Error(t, run("show", "letter-a"))
}

func TestRun_DownloadFromFile(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png"))
	}))
	defer media.Close()

	dir := t.TempDir()
	descPath := filepath.Join(dir, "lesson.json")
	gt.NoError(t, os.WriteFile(descPath, []byte(`{
		"id": "lesson-1",
		"title": "Colors",
		"mediaUrls": ["`+media.URL+`/img/red.png"]
	}`), 0o600))

	configPath := filepath.Join(dir, "offlinecache.toml")
	gt.NoError(t, os.WriteFile(configPath, []byte(`
[cache]
root_dir = "`+filepath.ToSlash(filepath.Join(dir, "media"))+`"
index_dir = "`+filepath.ToSlash(filepath.Join(dir, "state"))+`"
max_parallel = 1
`), 0o600))

	err := cli.Run(context.Background(), []string{
		"offlinecache", "--log-level", "error", "--config", configPath,
		"download", "--file", descPath,
	})
	gt.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "media", "lesson-1", "red.png"))
	gt.NoError(t, err)
}

func TestRun_InvalidInput(t *testing.T) {
	ctx := context.Background()
	dirs := []string{"--root-dir", t.TempDir(), "--index-dir", t.TempDir()}

	testCases := map[string][]string{
		"no descriptor source": {},
		"url without id":       {"--url", "https://cdn.example.com/a.png"},
		"id needs firebase":    {"--id", "lesson-1"},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			full := append([]string{"offlinecache", "--log-level", "error", "download"}, dirs...)
			gt.Error(t, cli.Run(ctx, append(full, args...)))
		})
	}

	t.Run("remove without argument", func(t *testing.T) {
		full := append([]string{"offlinecache", "--log-level", "error", "remove"}, dirs...)
		gt.Error(t, cli.Run(ctx, full))
	})

	t.Run("invalid log level", func(t *testing.T) {
		gt.Error(t, cli.Run(ctx, []string{"offlinecache", "--log-level", "loud", "list"}))
	})
}
