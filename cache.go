package brutaltpl

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/zeebo/blake3"
)

// ----------------------------- Template compilation cache ----------------

// CompileCache memoizes Compile by source text. All templates in one cache
// share the options it was created with.
type CompileCache struct {
	mu        sync.RWMutex
	templates map[uint64]*Template
	maxSize   int
	opts      []Option
}

// NewCompileCache returns a cache holding at most maxSize templates.
func NewCompileCache(maxSize int, opts ...Option) *CompileCache {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &CompileCache{
		templates: make(map[uint64]*Template),
		maxSize:   maxSize,
		opts:      opts,
	}
}

var globalCompileCache = NewCompileCache(500)

// CompileCached compiles src with default options through a shared cache.
func CompileCached(src string) (*Template, error) {
	return globalCompileCache.Compile(src)
}

func (cc *CompileCache) Compile(src string) (*Template, error) {
	key := fnv1a.HashString64(src)

	cc.mu.RLock()
	tmpl, exists := cc.templates[key]
	cc.mu.RUnlock()

	// a hash collision falls through to a fresh compile
	if exists && tmpl.source == src {
		return tmpl, nil
	}

	tmpl, err := Compile(src, cc.opts...)
	if err != nil {
		return nil, err
	}

	cc.mu.Lock()
	if _, ok := cc.templates[key]; !ok && len(cc.templates) >= cc.maxSize {
		// evict an arbitrary entry
		for k := range cc.templates {
			delete(cc.templates, k)
			break
		}
	}
	cc.templates[key] = tmpl
	cc.mu.Unlock()

	return tmpl, nil
}

func (cc *CompileCache) Len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.templates)
}

// ----------------------------- File cache -----------------------------------

// FileCache compiles template files and recompiles them only when their
// content changes. Modification time and size are a fast path; the BLAKE3
// digest of the content decides.
type FileCache struct {
	mu        sync.RWMutex
	templates map[string]*cachedTemplate
	maxSize   int
	opts      []Option
}

type cachedTemplate struct {
	template *Template
	modTime  time.Time
	size     int64
	sum      [32]byte
}

// NewFileCache returns a file cache holding at most maxSize templates; zero
// means the default size.
func NewFileCache(maxSize int, opts ...Option) *FileCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &FileCache{
		templates: make(map[string]*cachedTemplate),
		maxSize:   maxSize,
		opts:      opts,
	}
}

var globalFileCache = NewFileCache(1000)

// CompileFile compiles a template file with default options through a shared
// cache.
func CompileFile(filename string) (*Template, error) {
	return globalFileCache.CompileFile(filename)
}

func (fc *FileCache) CompileFile(filename string) (*Template, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("template file %q: %w", filename, err)
	}

	fc.mu.RLock()
	cached, exists := fc.templates[filename]
	fc.mu.RUnlock()

	if exists && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.template, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading template %q: %w", filename, err)
	}
	sum := blake3.Sum256(content)

	if exists && cached.sum == sum {
		// touched but unchanged
		fc.store(filename, &cachedTemplate{
			template: cached.template,
			modTime:  info.ModTime(),
			size:     info.Size(),
			sum:      sum,
		})
		return cached.template, nil
	}

	tmpl, err := Compile(string(content), fc.opts...)
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", filename, err)
	}
	fc.store(filename, &cachedTemplate{
		template: tmpl,
		modTime:  info.ModTime(),
		size:     info.Size(),
		sum:      sum,
	})
	return tmpl, nil
}

func (fc *FileCache) store(filename string, ct *cachedTemplate) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if _, ok := fc.templates[filename]; !ok && len(fc.templates) >= fc.maxSize {
		for k := range fc.templates {
			delete(fc.templates, k)
			break
		}
	}
	fc.templates[filename] = ct
}

// Invalidate forgets filename so the next CompileFile reads it again.
func (fc *FileCache) Invalidate(filename string) {
	fc.mu.Lock()
	delete(fc.templates, filename)
	fc.mu.Unlock()
}

// ClearCache drops every cached file.
func (fc *FileCache) ClearCache() {
	fc.mu.Lock()
	fc.templates = make(map[string]*cachedTemplate)
	fc.mu.Unlock()
}
