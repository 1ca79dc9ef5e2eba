package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
)

// Router dispatches a fetch to the fetcher registered for the URL scheme
type Router struct {
	fetchers map[string]interfaces.MediaFetcher
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{fetchers: make(map[string]interfaces.MediaFetcher)}
}

// Register routes the given schemes to f
func (r *Router) Register(f interfaces.MediaFetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.fetchers[strings.ToLower(s)] = f
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid media URL", goerr.V("url", rawURL))
	}

	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, goerr.New("unsupported media URL scheme",
			goerr.V("url", rawURL),
			goerr.V("scheme", u.Scheme),
		)
	}
	return f.Fetch(ctx, rawURL)
}
