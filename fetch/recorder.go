package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gosimple/slug"
)

// Fetcher retrieves remote stylesheet text.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Store receives copies of fetched stylesheets, debug report implements it.
type Store interface {
	StoreData(name string, data []byte)
}

// Recorder passes requests to the next fetcher and keeps every successfully
// fetched body in store under "fetched/<n>-<slug of url>.css".
type Recorder struct {
	next  Fetcher
	store Store

	mu    sync.Mutex
	count int
}

// NewRecorder wraps next. Nil store makes recorder a pass-through.
func NewRecorder(next Fetcher, store Store) *Recorder {
	return &Recorder{next: next, store: store}
}

func (r *Recorder) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	body, err := r.next.Fetch(ctx, url, header)
	if err != nil || r.store == nil {
		return body, err
	}

	r.mu.Lock()
	r.count++
	name := fmt.Sprintf("fetched/%03d-%s.css", r.count, slug.Make(url))
	r.mu.Unlock()

	r.store.StoreData(name, body)
	return body, nil
}
