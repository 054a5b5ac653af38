package resolve

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestDedup_ConcurrentCallersShareFetch(t *testing.T) {
	var (
		calls   atomic.Int32
		started = make(chan struct{})
		release = make(chan struct{})
	)
	fetcher := FetcherFunc(func(ctx context.Context, url string, header http.Header) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte("a{b:c}"), nil
	})

	d := newDedup(fetcher, http.Header{}, zaptest.NewLogger(t))

	const callers = 16
	results := make([]FetchResult, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			results[i] = d.Fetch(t.Context(), "http://x.test/a.css")
		})
	}
	<-started
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
	for i, r := range results {
		if r.Err != nil || string(r.Body) != "a{b:c}" || r.URL != "http://x.test/a.css" {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestDedup_FailuresAreMemoized(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	fetcher := FetcherFunc(func(ctx context.Context, url string, header http.Header) ([]byte, error) {
		calls++
		return nil, boom
	})

	d := newDedup(fetcher, nil, zaptest.NewLogger(t))
	for range 3 {
		if r := d.Fetch(t.Context(), "http://x.test/missing.css"); !errors.Is(r.Err, boom) {
			t.Errorf("Err = %v, want boom", r.Err)
		}
	}
	if calls != 1 {
		t.Errorf("fetcher called %d times, want 1", calls)
	}
}

func TestDedup_HeadersPassed(t *testing.T) {
	var got []http.Header
	fetcher := FetcherFunc(func(ctx context.Context, url string, header http.Header) ([]byte, error) {
		got = append(got, header)
		header.Set("X-Mutated", "1")
		return nil, nil
	})

	opts := Options{UserAgent: "agent/1.0", Header: http.Header{"X-Token": {"t"}}}
	d := newDedup(fetcher, opts.requestHeader(), zaptest.NewLogger(t))
	d.Fetch(t.Context(), "http://x.test/a.css")
	d.Fetch(t.Context(), "http://x.test/b.css")

	if len(got) != 2 {
		t.Fatalf("fetcher called %d times, want 2", len(got))
	}
	for _, h := range got {
		if h.Get("User-Agent") != "agent/1.0" || h.Get("X-Token") != "t" {
			t.Errorf("unexpected header %v", h)
		}
	}
	if got[1].Get("X-Mutated") != "" {
		t.Error("header changes leaked between requests")
	}
	if opts.Header.Get("User-Agent") != "" {
		t.Error("options header was modified")
	}
}

func TestOptions_Concurrency(t *testing.T) {
	if got := (Options{}).concurrency(); got != defaultConcurrency {
		t.Errorf("concurrency() = %d, want %d", got, defaultConcurrency)
	}
	if got := (Options{Concurrency: 2}).concurrency(); got != 2 {
		t.Errorf("concurrency() = %d, want 2", got)
	}
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		TransportFailure: "transport failure",
		ParseFailure:     "parse failure",
		CycleDetected:    "cycle detected",
		DepthExceeded:    "depth exceeded",
		Kind(9):          "Kind(9)",
	} {
		if got := k.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
