package resolve

import (
	"net/http"

	"cssimp/common"
)

const defaultConcurrency = 8

// Options controls a resolution run.
type Options struct {
	Recursive   bool                 // resolve remote imports found inside fetched content
	ResolveURLs bool                 // make relative asset URLs in fetched content absolute
	MaxDepth    int                  // maximum import nesting level, 0 means unbounded
	Concurrency int                  // maximum number of sibling imports resolved at once per document
	OnFailure   common.FailurePolicy // what to do when remote import could not be fetched or parsed
	UserAgent   string               // sent as User-Agent header when not empty
	Header      http.Header          // additional request headers
}

func (o Options) requestHeader() http.Header {
	h := o.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if o.UserAgent != "" {
		h.Set("User-Agent", o.UserAgent)
	}
	return h
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}
