package resolve

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote @import was left unresolved.
type Kind int

const (
	TransportFailure Kind = iota // network, DNS, timeout or non-2xx response
	ParseFailure                 // fetched content is not a valid stylesheet
	CycleDetected                // import chain refers back to one of its own documents
	DepthExceeded                // configured maximum import depth reached
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport failure"
	case ParseFailure:
		return "parse failure"
	case CycleDetected:
		return "cycle detected"
	case DepthExceeded:
		return "depth exceeded"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrCycle = errors.New("import cycle")
	ErrDepth = errors.New("maximum import depth reached")
)

// ImportError describes a remote @import directive which was left in the
// output unresolved. It is reported as a warning unless failure policy says
// otherwise.
type ImportError struct {
	Kind   Kind
	URL    string // Absolute URL of the import target
	Source string // Origin of the document containing the directive, empty for top-level input
	Line   int    // Line of the directive in its document
	Err    error
}

func (e *ImportError) Error() string {
	where := e.Source
	if where == "" {
		where = "input"
	}
	return fmt.Sprintf("unable to import %s (%s:%d): %s: %v", e.URL, where, e.Line, e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
