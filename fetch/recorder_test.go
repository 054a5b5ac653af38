package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cssimp/fetch"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, url string, _ http.Header) ([]byte, error) {
	body, ok := s[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

type memStore struct {
	mu    sync.Mutex
	names []string
	data  map[string]string
}

func (m *memStore) StoreData(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.names = append(m.names, name)
	m.data[name] = string(data)
}

func TestRecorder(t *testing.T) {
	next := stubFetcher{
		"http://x.test/a.css": ".a{}",
		"http://x.test/b.css": ".b{}",
	}
	store := &memStore{}
	r := fetch.NewRecorder(next, store)

	for _, u := range []string{"http://x.test/a.css", "http://x.test/missing.css", "http://x.test/b.css"} {
		r.Fetch(t.Context(), u, nil) //nolint:errcheck
	}

	if len(store.names) != 2 {
		t.Fatalf("stored %v, want 2 entries", store.names)
	}
	for i, want := range []string{".a{}", ".b{}"} {
		name := store.names[i]
		if !strings.HasPrefix(name, "fetched/00") || !strings.HasSuffix(name, ".css") || !strings.Contains(name, "x-test") {
			t.Errorf("unexpected entry name %q", name)
		}
		if store.data[name] != want {
			t.Errorf("%s = %q, want %q", name, store.data[name], want)
		}
	}
	if store.names[0] == store.names[1] {
		t.Errorf("entry names collide: %v", store.names)
	}
}

func TestRecorder_NilStore(t *testing.T) {
	r := fetch.NewRecorder(stubFetcher{"http://x.test/a.css": ".a{}"}, nil)
	body, err := r.Fetch(t.Context(), "http://x.test/a.css", nil)
	if err != nil || string(body) != ".a{}" {
		t.Errorf("Fetch() = %q, %v", body, err)
	}
	if _, err := r.Fetch(t.Context(), "http://x.test/none.css", nil); err == nil {
		t.Error("Fetch() expected error to pass through")
	}
}
