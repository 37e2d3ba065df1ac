package brutaltpl

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type reloadEvent struct {
	filename string
	tmpl     *Template
	err      error
}

type reloadRecorder struct {
	mu     sync.Mutex
	events []reloadEvent
}

func (r *reloadRecorder) callback(filename string, tmpl *Template, err error) {
	r.mu.Lock()
	r.events = append(r.events, reloadEvent{filename, tmpl, err})
	r.mu.Unlock()
}

func (r *reloadRecorder) take() []reloadEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.events
	r.events = nil
	return ev
}

func TestReloadManagerCheckNow(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "page.html")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeTemplate(t, filename, "v1", mtime)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	rm := NewReloadManager(time.Hour, WithLogger(logger))
	rec := &reloadRecorder{}
	rm.AddCallback(rec.callback)

	orig, err := rm.WatchFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if rm.Len() != 1 {
		t.Fatalf("expected 1 watched file, got %d", rm.Len())
	}

	rm.CheckNow()
	if ev := rec.take(); len(ev) != 0 {
		t.Fatalf("expected no reload for an unchanged file, got %v", ev)
	}

	writeTemplate(t, filename, "v2", mtime.Add(time.Minute))
	rm.CheckNow()
	ev := rec.take()
	if len(ev) != 1 || ev[0].err != nil || ev[0].tmpl == nil || ev[0].filename != filename {
		t.Fatalf("expected one successful reload, got %v", ev)
	}
	current, err := rm.GetTemplate(filename)
	if err != nil {
		t.Fatal(err)
	}
	if current == orig || current != ev[0].tmpl {
		t.Error("expected GetTemplate to return the reloaded template")
	}
	if out, _ := current.RenderString(nil); out != "v2" {
		t.Errorf("expected %q, got %q", "v2", out)
	}
	if !strings.Contains(logs.String(), "template reloaded") {
		t.Errorf("expected a reload log line, got %q", logs.String())
	}
}

func TestReloadManagerKeepsTemplateOnFailure(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "page.html")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeTemplate(t, filename, "good", mtime)

	rm := NewReloadManager(time.Hour)
	rec := &reloadRecorder{}
	rm.AddCallback(rec.callback)
	good, err := rm.WatchFile(filename)
	if err != nil {
		t.Fatal(err)
	}

	writeTemplate(t, filename, "{{#if x}}broken", mtime.Add(time.Minute))
	rm.CheckNow()
	ev := rec.take()
	if len(ev) != 1 || ev[0].err == nil || ev[0].tmpl != nil {
		t.Fatalf("expected one failed reload, got %v", ev)
	}
	if cur, _ := rm.GetTemplate(filename); cur != good {
		t.Error("expected the previous template to stay current")
	}

	rm.CheckNow()
	if ev := rec.take(); len(ev) != 0 {
		t.Errorf("expected the same failure to be reported once, got %v", ev)
	}

	writeTemplate(t, filename, "fixed", mtime.Add(2*time.Minute))
	rm.CheckNow()
	ev = rec.take()
	if len(ev) != 1 || ev[0].err != nil {
		t.Fatalf("expected a successful reload, got %v", ev)
	}
	if out, _ := ev[0].tmpl.RenderString(nil); out != "fixed" {
		t.Errorf("expected %q, got %q", "fixed", out)
	}
}

func TestReloadManagerWatchDirectory(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeTemplate(t, filepath.Join(dir, "a.html"), "a", now)
	writeTemplate(t, filepath.Join(dir, "b.tpl"), "b", now)
	writeTemplate(t, filepath.Join(dir, "notes.txt"), "{{#if", now)
	writeTemplate(t, filepath.Join(dir, "broken.html"), "{{/each}}", now)
	if err := os.Mkdir(filepath.Join(dir, "sub.html"), 0o755); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	rm := NewReloadManager(0, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err := rm.WatchDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if rm.Len() != 2 {
		t.Errorf("expected 2 watched files, got %d", rm.Len())
	}
	if !strings.Contains(logs.String(), "skipping template") || !strings.Contains(logs.String(), "broken.html") {
		t.Errorf("expected the broken file to be logged, got %q", logs.String())
	}

	if err := rm.WatchDirectory(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestReloadManagerGetTemplateUnwatched(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "page.html")
	writeTemplate(t, filename, "{{ 1 + 1 }}", time.Now())
	rm := NewReloadManager(0)
	tmpl, err := rm.GetTemplate(filename)
	if err != nil {
		t.Fatal(err)
	}
	if out, _ := tmpl.RenderString(nil); out != "2" {
		t.Errorf("expected %q, got %q", "2", out)
	}
	if rm.Len() != 0 {
		t.Error("expected GetTemplate not to watch the file")
	}
}

func TestReloadManagerStartStop(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "page.html")
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeTemplate(t, filename, "v1", mtime)

	rm := NewReloadManager(20 * time.Millisecond)
	reloaded := make(chan *Template, 1)
	rm.AddCallback(func(_ string, tmpl *Template, err error) {
		if err != nil {
			return
		}
		select {
		case reloaded <- tmpl:
		default:
		}
	})
	if _, err := rm.WatchFile(filename); err != nil {
		t.Fatal(err)
	}
	if err := rm.Start(); err != nil {
		t.Fatal(err)
	}
	if err := rm.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	writeTemplate(t, filename, "v2", mtime.Add(time.Minute))
	select {
	case tmpl := <-reloaded:
		if out, _ := tmpl.RenderString(nil); out != "v2" {
			t.Errorf("expected %q, got %q", "v2", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the scheduled reload")
	}

	if err := rm.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := rm.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
