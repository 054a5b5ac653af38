// Package resolve replaces remote stylesheet @import directives with the
// content they refer to.
package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cssimp/common"
	"cssimp/css"
)

// Resolver inlines remote @import directives. It is safe for concurrent use,
// every call to Resolve is an independent run with its own fetch memo and
// cycle tracking.
type Resolver struct {
	log     *zap.Logger
	parser  *css.Parser
	fetcher Fetcher
	opts    Options
}

// New returns resolver retrieving remote stylesheets with fetcher.
func New(fetcher Fetcher, opts Options, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		log:     log.Named("resolver"),
		parser:  css.NewParser(log),
		fetcher: fetcher,
		opts:    opts,
	}
}

// Result of a resolution run.
type Result struct {
	Sheet    *css.Stylesheet
	Warnings []*ImportError // remote imports left unresolved, ordered by document and line
	Fetched  int            // number of distinct URLs requested
}

// Err combines all warnings into a single error, nil when there are none.
func (r *Result) Err() error {
	var err error
	for _, w := range r.Warnings {
		err = multierr.Append(err, w)
	}
	return err
}

// ResolveBytes parses data and resolves it. See Resolve.
func (r *Resolver) ResolveBytes(ctx context.Context, data []byte, origin string) (*Result, error) {
	sheet, err := r.parser.Parse(data, origin)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, sheet, origin)
}

// Resolve returns a copy of sheet with remote @import directives replaced by
// fetched content. Origin is the URL sheet itself came from, when it is a
// network URL relative imports in sheet are resolved against it, otherwise
// pass empty string or a file name.
//
// Directives which could not be resolved stay in place and are reported as
// warnings. Error is returned only when ctx is done or when failure policy
// is FailurePolicyAbort and an import failed, no partial result is returned
// in that case.
func (r *Resolver) Resolve(ctx context.Context, sheet *css.Stylesheet, origin string) (*Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	log := r.log.With(zap.Stringer("run", id))
	rn := &run{
		Resolver: r,
		log:      log,
		fetches:  newDedup(r.fetcher, r.opts.requestHeader(), log),
	}

	top := frame{}
	if IsRemote(origin) {
		if t := Classify(origin, ""); t.Remote {
			top.origin = t.URL
			top.chain = []string{t.URL}
		}
	}

	rn.log.Debug("Resolution starting",
		zap.String("origin", origin),
		zap.Bool("recursive", r.opts.Recursive),
		zap.Bool("resolve-urls", r.opts.ResolveURLs),
		zap.Int("max-depth", r.opts.MaxDepth))

	nodes, err := rn.resolveNodes(ctx, css.CloneNodes(sheet.Nodes), top)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Sheet:    &css.Stylesheet{Nodes: nodes, Source: sheet.Source},
		Warnings: rn.sortedWarnings(),
		Fetched:  rn.fetches.Len(),
	}
	rn.log.Debug("Resolution completed", zap.Int("fetched", res.Fetched), zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// run holds state of a single Resolve call.
type run struct {
	*Resolver
	log     *zap.Logger
	fetches *dedup

	mu       sync.Mutex
	warnings []*ImportError
}

// frame describes document being walked.
type frame struct {
	origin string   // absolute URL of the document, empty for local top-level input
	depth  int      // 0 for top-level input
	chain  []string // remote documents from the top down to this one, inclusive
}

func (f frame) child(url string) frame {
	chain := make([]string, 0, len(f.chain)+1)
	chain = append(chain, f.chain...)
	return frame{origin: url, depth: f.depth + 1, chain: append(chain, url)}
}

// resolveNodes maps every top-level node of the document to its replacement.
// Remote imports are resolved concurrently, output keeps document order.
func (rn *run) resolveNodes(ctx context.Context, nodes []*css.Node, fr frame) ([]*css.Node, error) {
	slots := make([][]*css.Node, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rn.opts.concurrency())
	for i, n := range nodes {
		if !n.IsAtRule("import") {
			continue
		}
		imp, err := css.ParseImport(n)
		if err != nil {
			rn.log.Debug("Skipping malformed @import", zap.String("source", fr.origin), zap.Int("line", n.Line), zap.Error(err))
			continue
		}
		target := Classify(imp.Target, fr.origin)
		if !target.Remote {
			continue
		}
		g.Go(func() error {
			out, err := rn.resolveImport(gctx, n, imp, target.URL, fr)
			if err != nil {
				return err
			}
			if out == nil {
				// empty stylesheet still replaces directive
				out = []*css.Node{}
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*css.Node, 0, len(nodes))
	for i, n := range nodes {
		if slots[i] != nil {
			out = append(out, slots[i]...)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// resolveImport produces nodes replacing single remote @import directive.
func (rn *run) resolveImport(ctx context.Context, n *css.Node, imp *css.Import, url string, fr frame) ([]*css.Node, error) {
	if slices.Contains(fr.chain, url) {
		return rn.unresolved(n, imp, url, fr, CycleDetected, fmt.Errorf("%w: %s", ErrCycle, strings.Join(slices.Concat(fr.chain, []string{url}), " -> ")))
	}
	if rn.opts.MaxDepth > 0 && fr.depth+1 > rn.opts.MaxDepth {
		return rn.unresolved(n, imp, url, fr, DepthExceeded, fmt.Errorf("%w (%d)", ErrDepth, rn.opts.MaxDepth))
	}

	res := rn.fetches.Fetch(ctx, url)
	if res.Err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return rn.unresolved(n, imp, url, fr, TransportFailure, res.Err)
	}

	sheet, err := rn.parser.Parse(res.Body, url)
	if err != nil {
		return rn.unresolved(n, imp, url, fr, ParseFailure, err)
	}
	nodes := stripCharset(sheet.Nodes)

	if rn.opts.ResolveURLs {
		RewriteURLs(nodes, url, rn.log)
	}

	child := fr.child(url)
	if rn.opts.Recursive {
		if nodes, err = rn.resolveNodes(ctx, nodes, child); err != nil {
			return nil, err
		}
	} else {
		anchorImports(nodes, url)
	}

	rn.log.Debug("Import resolved",
		zap.String("url", url),
		zap.String("source", fr.origin),
		zap.Int("depth", child.depth),
		zap.String("media", imp.Media))
	return applyConditions(imp, nodes), nil
}

// unresolved records failure and returns nodes left in place of the directive
// according to failure policy.
func (rn *run) unresolved(n *css.Node, imp *css.Import, url string, fr frame, kind Kind, err error) ([]*css.Node, error) {
	ie := &ImportError{Kind: kind, URL: url, Source: fr.origin, Line: n.Line, Err: err}

	// abort applies to fetch and parse problems, limits only stop the branch
	if rn.opts.OnFailure == common.FailurePolicyAbort && (kind == TransportFailure || kind == ParseFailure) {
		return nil, ie
	}

	rn.log.Warn("Remote import left unresolved",
		zap.String("url", url),
		zap.String("source", fr.origin),
		zap.Int("line", n.Line),
		zap.Stringer("kind", kind),
		zap.Error(err))

	rn.mu.Lock()
	rn.warnings = append(rn.warnings, ie)
	rn.mu.Unlock()

	// directive has to keep working wherever output ends up
	if fr.origin != "" && imp.Target != url && !IsAbsolute(imp.Target) {
		imp.SetTarget(n, url)
	}

	if rn.opts.OnFailure == common.FailurePolicyMarker {
		return []*css.Node{css.NewText(failureMarker(ie)), n}, nil
	}
	return []*css.Node{n}, nil
}

func (rn *run) sortedWarnings() []*ImportError {
	rn.mu.Lock()
	defer rn.mu.Unlock()

	warnings := slices.Clone(rn.warnings)
	slices.SortStableFunc(warnings, func(a, b *ImportError) int {
		return cmp.Or(
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.URL, b.URL),
		)
	})
	return warnings
}

// anchorImports makes targets of imports left in fetched content absolute.
func anchorImports(nodes []*css.Node, origin string) {
	for _, n := range nodes {
		if !n.IsAtRule("import") {
			continue
		}
		imp, err := css.ParseImport(n)
		if err != nil || IsAbsolute(imp.Target) {
			continue
		}
		if t := Classify(imp.Target, origin); t.Remote {
			imp.SetTarget(n, t.URL)
		}
	}
}

// stripCharset drops @charset rules, they are only allowed at the very
// beginning of a stylesheet and fetched content is already decoded.
func stripCharset(nodes []*css.Node) []*css.Node {
	return slices.DeleteFunc(nodes, func(n *css.Node) bool {
		return n.IsAtRule("charset")
	})
}

func failureMarker(ie *ImportError) string {
	text := strings.ReplaceAll(ie.Error(), "*/", "* /")
	return "/* cssimp: " + text + " */\n"
}
