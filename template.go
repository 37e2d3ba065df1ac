package brutaltpl

import (
	"bytes"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// ----------------------------- Public API -----------------------------------

// Template is a compiled template. It is immutable apart from its filter
// registry and may be rendered from many goroutines at once, provided each
// render gets its own unmodified data and the filters are pure.
type Template struct {
	root        node
	source      string
	timestamp   time.Time
	fingerprint string
	escape      bool
	eval        *Evaluator
}

type compileOptions struct {
	filters    Filters
	leftDelim  string
	rightDelim string
	escape     bool
	exprCache  bool
	logger     *slog.Logger
}

type Option func(*compileOptions)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCompileOptions(opts []Option) compileOptions {
	co := compileOptions{
		filters:    DefaultFilters(),
		leftDelim:  defaultLeftDelim,
		rightDelim: defaultRightDelim,
		escape:     true,
		exprCache:  true,
		logger:     discardLogger,
	}
	for _, o := range opts {
		o(&co)
	}
	return co
}

// WithFilters registers or overrides filters on top of the defaults.
func WithFilters(f Filters) Option {
	return func(co *compileOptions) {
		for name, fn := range f {
			co.filters[name] = fn
		}
	}
}

// WithDelims sets custom delimiters. Empty values keep the default.
func WithDelims(left, right string) Option {
	return func(co *compileOptions) {
		if left != "" {
			co.leftDelim = left
		}
		if right != "" {
			co.rightDelim = right
		}
	}
}

// WithEscape turns HTML escaping of interpolated values on or off. It is on
// by default.
func WithEscape(on bool) Option { return func(co *compileOptions) { co.escape = on } }

// WithExprCache controls whether parsed expressions are kept between renders.
// With the cache off every render re-tokenizes and re-parses each expression.
func WithExprCache(on bool) Option { return func(co *compileOptions) { co.exprCache = on } }

// WithLogger sets the logger for compile and render diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(co *compileOptions) {
		if l != nil {
			co.logger = l
		}
	}
}

// Compile parses src into a reusable Template. Syntax errors are reported
// here; evaluation errors only when a render reaches the faulty expression.
func Compile(src string, opts ...Option) (*Template, error) {
	co := newCompileOptions(opts)
	root, err := parseTemplate(src, co.leftDelim, co.rightDelim)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256([]byte(src))
	t := &Template{
		root:        root,
		source:      src,
		timestamp:   time.Now(),
		fingerprint: hex.EncodeToString(sum[:]),
		escape:      co.escape,
		eval:        newEvaluator(newFilterRegistry(co.filters), co.exprCache, co.logger),
	}
	co.logger.Debug("template compiled",
		"fingerprint", t.fingerprint[:16],
		"nodes", countNodes(root),
		"bytes", len(src))
	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string, opts ...Option) *Template {
	t, err := Compile(src, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Source returns the template text the Template was compiled from.
func (t *Template) Source() string { return t.source }

// Timestamp returns the compile time.
func (t *Template) Timestamp() time.Time { return t.timestamp }

// Fingerprint is the hex BLAKE3 digest of the source.
func (t *Template) Fingerprint() string { return t.fingerprint }

// RegisterFilter adds or replaces a filter without recompiling.
func (t *Template) RegisterFilter(name string, fn FilterFunc) { t.eval.RegisterFilter(name, fn) }

// Render executes the template with data into w. Data may be a map, a *Map, a
// struct or a pointer to one. Output is buffered, so nothing reaches w when
// rendering fails.
func (t *Template) Render(w io.Writer, data any) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	if err := t.render(buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderString renders into a pooled builder and returns a string.
func (t *Template) RenderString(data any) (string, error) {
	sb := stringBuilderPool.Get().(*strings.Builder)
	sb.Reset()
	defer stringBuilderPool.Put(sb)
	if err := t.render(sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (t *Template) render(w io.Writer, data any) error {
	ctx := renderCtxPool.Get().(*renderCtx)
	ctx.reset(t, data)
	defer func() {
		ctx.release()
		renderCtxPool.Put(ctx)
	}()
	return t.root.render(ctx, w)
}
