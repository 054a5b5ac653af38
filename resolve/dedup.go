package resolve

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves remote stylesheet text.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// FetcherFunc is an adapter to allow use of ordinary functions as Fetcher.
type FetcherFunc func(ctx context.Context, url string, header http.Header) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return f(ctx, url, header)
}

// FetchResult is the outcome of retrieving a remote resource.
type FetchResult struct {
	URL  string
	Body []byte
	Err  error
}

// dedup memoizes fetches for the lifetime of a single resolution run. At most
// one transport request per URL is ever issued, callers asking for the same
// URL concurrently wait for and share the same result.
type dedup struct {
	fetcher Fetcher
	header  http.Header
	log     *zap.Logger

	group singleflight.Group

	mu   sync.Mutex
	done map[string]FetchResult
}

func newDedup(fetcher Fetcher, header http.Header, log *zap.Logger) *dedup {
	return &dedup{
		fetcher: fetcher,
		header:  header,
		log:     log,
		done:    make(map[string]FetchResult),
	}
}

func (d *dedup) lookup(url string) (FetchResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.done[url]
	return r, ok
}

// Fetch returns memoized result for url fetching it first if necessary.
func (d *dedup) Fetch(ctx context.Context, url string) FetchResult {
	if r, ok := d.lookup(url); ok {
		d.log.Debug("Fetch result reused", zap.String("url", url))
		return r
	}

	v, _, shared := d.group.Do(url, func() (any, error) {
		// result is stored before the flight is forgotten, late callers find it here
		if r, ok := d.lookup(url); ok {
			return r, nil
		}
		d.log.Debug("Fetching", zap.String("url", url))
		body, err := d.fetcher.Fetch(ctx, url, d.header.Clone())
		r := FetchResult{URL: url, Body: body, Err: err}

		d.mu.Lock()
		d.done[url] = r
		d.mu.Unlock()
		return r, nil
	})
	if shared {
		d.log.Debug("Fetch shared with concurrent request", zap.String("url", url))
	}
	return v.(FetchResult)
}

// Len returns number of distinct URLs fetched so far.
func (d *dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.done)
}
