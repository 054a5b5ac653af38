// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"cssimp/config"
	"cssimp/fetch"
	"cssimp/resolve"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by resolve subcommand
	Overwrite bool
	Strict    bool
	Origin    string
	CodePage  encoding.Encoding

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// ResolverOptions translates configuration into resolution run options.
func (e *LocalEnv) ResolverOptions() resolve.Options {
	rc, tc := e.Cfg.Resolver, e.Cfg.Transport

	ua := tc.UserAgent
	if tc.ModernBrowser {
		ua = fetch.ModernBrowserUserAgent
	}
	return resolve.Options{
		Recursive:   rc.Recursive,
		ResolveURLs: rc.ResolveURLs,
		MaxDepth:    rc.MaxDepth,
		Concurrency: rc.Concurrency,
		OnFailure:   rc.OnFailure,
		UserAgent:   ua,
		Header:      tc.Header(),
	}
}

// NewResolver builds resolver using configured transport. When debug report
// is requested every fetched stylesheet ends up in it.
func (e *LocalEnv) NewResolver() *resolve.Resolver {
	tc := e.Cfg.Transport
	client := fetch.New(e.Log,
		fetch.WithTimeout(tc.Timeout),
		fetch.WithMaxBodySize(tc.MaxBodySize))

	var fetcher resolve.Fetcher = client
	if e.Rpt != nil {
		fetcher = fetch.NewRecorder(client, e.Rpt)
	}
	return resolve.New(fetcher, e.ResolverOptions(), e.Log)
}
