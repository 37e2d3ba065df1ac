package brutaltpl

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"
)

// ----------------------------- Template Reload Manager -----------------------------

// ReloadCallback is called when a watched template is recompiled. On failure
// template is nil and err is set; the previous template stays current.
type ReloadCallback func(filename string, template *Template, err error)

// ReloadManager polls watched template files and recompiles them when their
// content changes.
type ReloadManager struct {
	mu            sync.RWMutex
	watched       map[string]*Template
	failures      map[string]string // last reload error per file
	callbacks     []ReloadCallback
	cache         *FileCache
	scheduler     gocron.Scheduler
	checkInterval time.Duration
	checking      *abool.AtomicBool
	started       *abool.AtomicBool
	logger        *slog.Logger
}

// NewReloadManager creates a manager that checks every checkInterval (one
// second when zero). opts apply to every compile, and WithLogger also sets
// the manager's logger.
func NewReloadManager(checkInterval time.Duration, opts ...Option) *ReloadManager {
	if checkInterval <= 0 {
		checkInterval = 1 * time.Second
	}
	co := newCompileOptions(opts)
	return &ReloadManager{
		watched:       make(map[string]*Template),
		failures:      make(map[string]string),
		cache:         NewFileCache(0, opts...),
		checkInterval: checkInterval,
		checking:      abool.New(),
		started:       abool.New(),
		logger:        co.logger,
	}
}

// WatchFile compiles filename and adds it to the watch list.
func (rm *ReloadManager) WatchFile(filename string) (*Template, error) {
	tmpl, err := rm.cache.CompileFile(filename)
	if err != nil {
		return nil, err
	}
	rm.mu.Lock()
	rm.watched[filename] = tmpl
	rm.mu.Unlock()
	return tmpl, nil
}

// WatchDirectory watches every .html and .tpl file in dir. Files that fail to
// compile are skipped and logged.
func (rm *ReloadManager) WatchDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %q: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isTemplateFile(name) {
			continue
		}
		filename := filepath.Join(dir, name)
		if _, err := rm.WatchFile(filename); err != nil {
			rm.logger.Warn("skipping template", "file", filename, "err", err)
		}
	}
	return nil
}

func isTemplateFile(name string) bool {
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".tpl")
}

// AddCallback adds a callback to be called when templates are reloaded
func (rm *ReloadManager) AddCallback(callback ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, callback)
}

// Start schedules the periodic check. Calling it twice is a no-op.
func (rm *ReloadManager) Start() error {
	if !rm.started.SetToIf(false, true) {
		return nil
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		rm.started.UnSet()
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if _, err := s.NewJob(gocron.DurationJob(rm.checkInterval), gocron.NewTask(rm.CheckNow)); err != nil {
		rm.started.UnSet()
		return fmt.Errorf("scheduling reload check: %w", err)
	}
	rm.mu.Lock()
	rm.scheduler = s
	rm.mu.Unlock()
	s.Start()
	rm.logger.Info("watching templates", "files", rm.Len(), "interval", rm.checkInterval)
	return nil
}

// Stop stops the periodic check and waits for a running one to finish.
func (rm *ReloadManager) Stop() error {
	if !rm.started.SetToIf(true, false) {
		return nil
	}
	rm.mu.Lock()
	s := rm.scheduler
	rm.scheduler = nil
	rm.mu.Unlock()
	return s.Shutdown()
}

// Len returns the number of watched files.
func (rm *ReloadManager) Len() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.watched)
}

// GetTemplate returns the current template for filename, compiling it first
// when it is not watched yet.
func (rm *ReloadManager) GetTemplate(filename string) (*Template, error) {
	rm.mu.RLock()
	tmpl, exists := rm.watched[filename]
	rm.mu.RUnlock()
	if exists {
		return tmpl, nil
	}
	return rm.cache.CompileFile(filename)
}

// CheckNow checks every watched file once. Overlapping calls return
// immediately.
func (rm *ReloadManager) CheckNow() {
	if !rm.checking.SetToIf(false, true) {
		return
	}
	defer rm.checking.UnSet()

	rm.mu.RLock()
	files := make([]string, 0, len(rm.watched))
	for filename := range rm.watched {
		files = append(files, filename)
	}
	rm.mu.RUnlock()
	sort.Strings(files)

	for _, filename := range files {
		rm.checkFile(filename)
	}
}

func (rm *ReloadManager) checkFile(filename string) {
	rm.mu.RLock()
	current := rm.watched[filename]
	rm.mu.RUnlock()

	tmpl, err := rm.cache.CompileFile(filename)
	if err != nil {
		// report a broken file once, not on every tick
		rm.mu.Lock()
		repeated := rm.failures[filename] == err.Error()
		rm.failures[filename] = err.Error()
		rm.mu.Unlock()
		if !repeated {
			rm.logger.Warn("template reload failed", "file", filename, "err", err)
			rm.notify(filename, nil, err)
		}
		return
	}

	rm.mu.Lock()
	delete(rm.failures, filename)
	changed := tmpl != current
	if changed {
		rm.watched[filename] = tmpl
	}
	rm.mu.Unlock()
	if !changed {
		return
	}
	rm.logger.Info("template reloaded", "file", filename, "fingerprint", tmpl.Fingerprint()[:16])
	rm.notify(filename, tmpl, nil)
}

func (rm *ReloadManager) notify(filename string, tmpl *Template, err error) {
	rm.mu.RLock()
	callbacks := append([]ReloadCallback(nil), rm.callbacks...)
	rm.mu.RUnlock()
	for _, callback := range callbacks {
		callback(filename, tmpl, err)
	}
}
