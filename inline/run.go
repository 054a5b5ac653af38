// Package inline implements "resolve" command: reads local stylesheets,
// inlines their remote imports and writes results.
package inline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/text/encoding/ianaindex"

	"cssimp/archive"
	"cssimp/common"
	"cssimp/config"
	"cssimp/css"
	"cssimp/fetch"
	"cssimp/resolve"
	"cssimp/state"
)

// Stdio marks standard input or output in place of a path.
const Stdio = "-"

var ErrWarnings = errors.New("some remote imports were left unresolved")

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("resolve")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if err := applyFlags(cmd, env); err != nil {
		return err
	}
	env.Overwrite, env.Strict, env.Origin = cmd.Bool("overwrite"), cmd.Bool("strict"), cmd.String("origin")

	// local stylesheets without @charset or BOM in legacy encodings
	cp := cmd.String("input-charset")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Converting input stylesheets", zap.String("charset", n))
		}
	}

	log.Info("Processing starting",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.Bool("recursive", env.Cfg.Resolver.Recursive),
		zap.Bool("resolve-urls", env.Cfg.Resolver.ResolveURLs),
		env.Cfg.Transport.HeadersField())
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	p := &processor{env: env, log: log, resolver: env.NewResolver(), parser: css.NewParser(log)}
	return p.process(ctx, src, dst)
}

// Flags returns command line flags understood by Run.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "resolve remote imports found inside fetched stylesheets"},
		&cli.BoolFlag{Name: "resolve-urls", Aliases: []string{"u"}, Usage: "make relative url() references in fetched stylesheets absolute"},
		&cli.IntFlag{Name: "max-depth", Usage: "maximum nesting `LEVEL` of remote imports, 0 - unlimited"},
		&cli.StringFlag{Name: "on-failure",
			Usage: "what to do with imports which could not be fetched or parsed (" + strings.Join(common.FailurePolicyNames(), ", ") + ")"},
		&cli.StringFlag{Name: "user-agent", Usage: "send `AGENT` as User-Agent header"},
		&cli.BoolFlag{Name: "modern-browser", Usage: "pretend to be a modern browser, font services return woff2 fonts"},
		&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "send additional request `HEADER` (\"Name: value\"), may be repeated"},
		&cli.StringFlag{Name: "origin", Usage: "`URL` input stylesheet was downloaded from, relative imports are resolved against it"},
		&cli.StringFlag{Name: "input-charset", Usage: "force `ENCODING` for input stylesheets (see IANA.org for character set names)"},
		&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exists, overwrite files"},
		&cli.BoolFlag{Name: "strict", Usage: "fail if any remote import was left unresolved"},
	}
}

// applyFlags superimposes command line flags on top of loaded configuration.
func applyFlags(cmd *cli.Command, env *state.LocalEnv) error {
	rc, tc := &env.Cfg.Resolver, &env.Cfg.Transport
	if cmd.IsSet("recursive") {
		rc.Recursive = cmd.Bool("recursive")
	}
	if cmd.IsSet("resolve-urls") {
		rc.ResolveURLs = cmd.Bool("resolve-urls")
	}
	if cmd.IsSet("max-depth") {
		if d := cmd.Int("max-depth"); d >= 0 {
			rc.MaxDepth = d
		} else {
			return fmt.Errorf("max-depth cannot be negative: %d", d)
		}
	}
	if cmd.IsSet("on-failure") {
		policy, err := common.ParseFailurePolicy(cmd.String("on-failure"))
		if err != nil {
			return fmt.Errorf("bad on-failure value: %w", err)
		}
		rc.OnFailure = policy
	}
	if cmd.IsSet("user-agent") {
		tc.UserAgent = cmd.String("user-agent")
	}
	if cmd.IsSet("modern-browser") {
		tc.ModernBrowser = cmd.Bool("modern-browser")
	}
	for _, h := range cmd.StringSlice("header") {
		name, value, ok := strings.Cut(h, ":")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !ok || !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return fmt.Errorf("malformed header %q, expected \"Name: value\"", h)
		}
		if tc.Headers == nil {
			tc.Headers = make(map[string]config.SecretString)
		}
		tc.Headers[name] = config.SecretString(value)
	}
	return nil
}

type processor struct {
	env      *state.LocalEnv
	log      *zap.Logger
	resolver *resolve.Resolver
	parser   *css.Parser
}

// process determines input type (stdin, directory, archive or single file)
// and handles it accordingly.
func (p *processor) process(ctx context.Context, src, dst string) error {
	if src == Stdio {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("unable to read standard input: %w", err)
		}
		return p.processData(ctx, data, "stdin", p.outputFor("stdin.css", dst))
	}

	fi, err := os.Stat(src)
	if err != nil {
		// path may point inside of an archive
		if head, tail, ok := splitArchivePath(src); ok {
			return p.processArchive(ctx, head, tail, dst)
		}
		return fmt.Errorf("input source was not found: %w", err)
	}
	switch {
	case fi.IsDir():
		if dst == "" || dst == Stdio {
			return errors.New("directory input requires destination directory")
		}
		return p.processDir(ctx, src, dst)
	case fi.Mode().IsRegular():
		if !isStylesheet(src) {
			if ok, err := isArchiveFile(src); err == nil && ok {
				return p.processArchive(ctx, src, "", dst)
			}
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("unable to read input: %w", err)
		}
		return p.processData(ctx, data, src, p.outputFor(filepath.Base(src), dst))
	default:
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}
}

// outputFor returns destination path for input with the given base name.
// Empty result means standard output.
func (p *processor) outputFor(base, dst string) string {
	if dst == "" || dst == Stdio {
		return ""
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		return filepath.Join(dst, base)
	}
	return dst
}

// processDir resolves every stylesheet under dir keeping relative layout in dst.
func (p *processor) processDir(ctx context.Context, dir, dst string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if isStylesheet(path) {
			files = append(files, path)
		} else if ok, _ := isArchiveFile(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to walk directory: %w", err)
	}
	if len(files) == 0 {
		p.log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}
	sort.Sort(natural.StringSlice(files))

	var failed int
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)

		if !isStylesheet(path) {
			// archive content goes to directory named after archive
			out = strings.TrimSuffix(out, filepath.Ext(out))
			if err := os.MkdirAll(out, 0755); err != nil {
				return fmt.Errorf("unable to create output directory: %w", err)
			}
			err = p.processArchive(ctx, path, "", out)
		} else {
			var data []byte
			data, err = os.ReadFile(path)
			if err == nil {
				err = p.processData(ctx, data, path, out)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			p.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("unable to process %d of %d stylesheets", failed, len(files))
	}
	return nil
}

// processArchive resolves every stylesheet in zip archive located under
// pathIn keeping relative layout in dst. Standard output is only possible
// when exactly one stylesheet was selected.
func (p *processor) processArchive(ctx context.Context, path, pathIn, dst string) error {
	p.log.Debug("Processing archive", zap.String("archive", path), zap.String("path", pathIn))

	type entry struct {
		name string
		file *zip.File
	}
	var entries []entry
	_, err := archive.Walk(ctx, path, pathIn, []string{".css"}, func(name string, file *zip.File) error {
		entries = append(entries, entry{name: name, file: file})
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to walk archive %s: %w", path, err)
	}
	switch {
	case len(entries) == 0:
		p.log.Debug("Nothing to process", zap.String("archive", path))
		return nil
	case len(entries) > 1 && (dst == "" || dst == Stdio):
		return errors.New("archive input with multiple stylesheets requires destination directory")
	}

	toDir := len(entries) > 1
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		toDir = true
	}

	var failed int
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		local := config.LocalPath(e.name)
		out := p.outputFor(filepath.Base(local), dst)
		if toDir {
			out = filepath.Join(dst, local)
		}
		name := path + "/" + e.file.Name

		data, err := readEntry(e.file)
		if err == nil {
			err = p.processData(ctx, data, name, out)
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			failed++
			p.log.Error("Unable to process archive entry", zap.String("archive", path), zap.String("entry", e.file.Name), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("unable to process %d of %d stylesheets", failed, len(entries))
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// splitArchivePath looks for an existing zip archive at the beginning of src
// and returns archive path and the rest of src as slash separated path inside
// of it.
func splitArchivePath(src string) (string, string, bool) {
	for head := filepath.Dir(src); head != "." && head != filepath.Dir(head); head = filepath.Dir(head) {
		fi, err := os.Stat(head)
		if err != nil {
			continue
		}
		if !fi.Mode().IsRegular() {
			return "", "", false
		}
		if ok, err := isArchiveFile(head); err != nil || !ok {
			return "", "", false
		}
		tail := strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
		return head, filepath.ToSlash(tail), true
	}
	return "", "", false
}

func isStylesheet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".css")
}

// isArchiveFile detects zip archives by content rather than by extension.
func isArchiveFile(path string) (bool, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return false, err
	}
	return kind == matchers.TypeZip, nil
}

// processData resolves single stylesheet and writes result to out, standard
// output if out is empty.
func (p *processor) processData(ctx context.Context, data []byte, name, out string) error {
	if out != "" && !p.env.Overwrite {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("output file already exists: %s", out)
		}
	}
	p.env.Rpt.StoreData("input/"+filepath.Base(name), data)

	cs, text, err := p.decode(data)
	if err != nil {
		return err
	}
	sheet, err := p.parser.Parse(text, name)
	if err != nil {
		return err
	}

	res, err := p.resolver.Resolve(ctx, sheet, p.env.Origin)
	if err != nil {
		return fmt.Errorf("unable to resolve imports of %s: %w", name, err)
	}

	var buf bytes.Buffer
	if _, err := res.Sheet.WriteTo(&buf); err != nil {
		return err
	}
	result := p.encode(cs, buf.Bytes(), name)
	p.env.Rpt.StoreData("output/"+filepath.Base(name), result)

	if err := write(out, result); err != nil {
		return err
	}

	p.log.Debug("Stylesheet processed",
		zap.String("file", name),
		zap.String("output", out),
		zap.Int("fetched", res.Fetched),
		zap.Int("warnings", len(res.Warnings)))

	if len(res.Warnings) > 0 && p.env.Strict {
		return fmt.Errorf("%w: %w", ErrWarnings, res.Err())
	}
	return nil
}

// decode converts local stylesheet to UTF-8 and reports how it was stored.
// Forced code page wins over whatever stylesheet declares, except for byte
// order mark.
func (p *processor) decode(data []byte) (fetch.Charset, []byte, error) {
	cs, err := fetch.Detect(data, "")
	if p.env.CodePage != nil && !cs.BOM {
		n, _ := ianaindex.IANA.Name(p.env.CodePage)
		cs, err = fetch.Charset{Label: n, Encoding: p.env.CodePage}, nil
	}
	if err != nil {
		return cs, nil, err
	}
	text, err := cs.Decode(data)
	if err != nil {
		return cs, nil, fmt.Errorf("unable to decode input: %w", err)
	}
	return cs, text, nil
}

// encode stores result the way input was stored: BOM is kept and text goes
// back to the charset stylesheet declares. When that is impossible (forced
// code page, fetched content not representable in declared charset) result
// stays UTF-8 and leading @charset rule is changed to say so.
func (p *processor) encode(cs fetch.Charset, text []byte, name string) []byte {
	forced := p.env.CodePage != nil && !cs.BOM
	if !forced {
		data, err := cs.Encode(text)
		if err == nil {
			return data
		}
		p.log.Warn("Result cannot be stored in declared charset, using UTF-8",
			zap.String("file", name), zap.String("charset", cs.Label), zap.Error(err))
	}
	return fetch.SetCharsetRule(text, "utf-8")
}

func write(out string, data []byte) error {
	if out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}
