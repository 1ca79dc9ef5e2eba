package fetcher_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/infra/fetcher"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	gt.NoError(t, err)
	return string(data)
}

func TestHTTP_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/broken.mp3":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := fetcher.NewHTTP()
	ctx := context.Background()

	t.Run("returns body on 200", func(t *testing.T) {
		rc, err := f.Fetch(ctx, server.URL+"/img.png")
		gt.NoError(t, err)
		gt.Value(t, readAll(t, rc)).Equal("png-bytes")
	})

	t.Run("fails on 404", func(t *testing.T) {
		rc, err := f.Fetch(ctx, server.URL+"/missing.png")
		gt.Error(t, err)
		gt.Value(t, rc).Nil()
		gt.String(t, err.Error()).Contains("unexpected status code")
	})

	t.Run("fails on 500 without retry by default", func(t *testing.T) {
		_, err := f.Fetch(ctx, server.URL+"/broken.mp3")
		gt.Error(t, err)
	})

	t.Run("fails on unreachable host", func(t *testing.T) {
		_, err := f.Fetch(ctx, "http://127.0.0.1:1/none.png")
		gt.Error(t, err)
	})
}

func TestHTTP_FetchRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer server.Close()

	t.Run("retries transient failures when enabled", func(t *testing.T) {
		calls.Store(0)
		f := fetcher.NewHTTP(
			fetcher.WithRetryMax(3),
			fetcher.WithRetryWait(time.Millisecond, 5*time.Millisecond),
		)
		rc, err := f.Fetch(context.Background(), server.URL+"/audio.mp3")
		gt.NoError(t, err)
		gt.Value(t, readAll(t, rc)).Equal("finally")
		gt.Number(t, calls.Load()).Equal(int32(3))
	})

	t.Run("single attempt when retries are disabled", func(t *testing.T) {
		calls.Store(0)
		f := fetcher.NewHTTP(fetcher.WithRetryMax(0))
		_, err := f.Fetch(context.Background(), server.URL+"/audio.mp3")
		gt.Error(t, err)
		gt.Number(t, calls.Load()).Equal(int32(1))
	})
}

func TestHTTP_FetchHonorsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.NewHTTP().Fetch(ctx, server.URL+"/slow.png")
	gt.Error(t, err)
}

type stubFetcher struct {
	name string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.name + ":" + url)), nil
}

func TestRouter_Fetch(t *testing.T) {
	router := fetcher.NewRouter().
		Register(&stubFetcher{name: "web"}, "http", "https").
		Register(&stubFetcher{name: "gcs"}, "gs")
	ctx := context.Background()

	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://x/img.png", want: "web:https://x/img.png"},
		{url: "HTTP://x/a.mp3", want: "web:HTTP://x/a.mp3"},
		{url: "gs://bucket/lessons/a.png", want: "gcs:gs://bucket/lessons/a.png"},
		{url: "ftp://x/a.png", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rc, err := router.Fetch(ctx, tt.url)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, readAll(t, rc)).Equal(tt.want)
		})
	}
}

func TestParseGSURL(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{url: "gs://kids-app.appspot.com/lessons/lesson-1/img.png", wantBucket: "kids-app.appspot.com", wantObject: "lessons/lesson-1/img.png"},
		{url: "gs://bucket/a.mp3", wantBucket: "bucket", wantObject: "a.mp3"},
		{url: "gs://bucket/", wantErr: true},
		{url: "gs:///object", wantErr: true},
		{url: "https://bucket/object", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, object, err := fetcher.ParseGSURL(tt.url)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, bucket).Equal(tt.wantBucket)
			gt.Value(t, object).Equal(tt.wantObject)
		})
	}
}

func TestGCS_FetchWithRealBucket(t *testing.T) {
	objectURL := os.Getenv("TEST_GCS_OBJECT_URL")
	if objectURL == "" {
		t.Skip("TEST_GCS_OBJECT_URL not provided")
	}

	var opts []option.ClientOption
	if cred := os.Getenv("TEST_GCP_CREDENTIALS_FILE"); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}

	ctx := context.Background()
	f, err := fetcher.NewGCS(ctx, opts...)
	gt.NoError(t, err)
	defer func() {
		gt.NoError(t, f.Close())
	}()

	rc, err := f.Fetch(ctx, objectURL)
	gt.NoError(t, err)
	gt.Number(t, len(readAll(t, rc))).Greater(0)

	_, err = f.Fetch(ctx, objectURL+".does-not-exist")
	gt.Error(t, err)
	gt.False(t, errors.Is(err, context.Canceled))
}
