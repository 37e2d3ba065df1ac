package brutaltpl

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestMap(t *testing.T) {
	m := NewMap("b", 1, "a", 2)
	m.Set("c", 3)
	m.Set("b", 4)
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Errorf("expected [b a c], got %v", got)
	}
	if v, _ := m.Get("b"); v != 4 {
		t.Errorf("expected 4, got %v", v)
	}
	m.Delete("a")
	m.Delete("missing")
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", got)
	}
	if m.Len() != 2 {
		t.Errorf("expected length 2, got %d", m.Len())
	}

	var zero Map
	zero.Set("x", 1)
	if zero.Len() != 1 {
		t.Error("expected the zero Map to be usable")
	}
	var nilMap *Map
	if _, ok := nilMap.Get("x"); ok || nilMap.Len() != 0 || nilMap.Keys() != nil {
		t.Error("expected a nil *Map to be empty")
	}
}

func TestMapUnmarshalYAML(t *testing.T) {
	src := `
zeta: 1
alpha:
  second: two
  first: [1, "x", {k: v}]
anchor: &a {y: 1, x: 2}
alias: *a
empty:
`
	var m Map
	if err := yaml.Unmarshal([]byte(src), &m); err != nil {
		t.Fatal(err)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "anchor", "alias", "empty"}) {
		t.Fatalf("unexpected key order %v", got)
	}
	alpha, _ := m.Get("alpha")
	inner, ok := alpha.(*Map)
	if !ok {
		t.Fatalf("expected nested *Map, got %T", alpha)
	}
	if got := inner.Keys(); !reflect.DeepEqual(got, []string{"second", "first"}) {
		t.Errorf("unexpected nested order %v", got)
	}
	first, _ := inner.Get("first")
	seq, ok := first.([]any)
	if !ok || len(seq) != 3 || seq[0] != 1 || seq[1] != "x" {
		t.Fatalf("unexpected sequence %#v", first)
	}
	if _, ok := seq[2].(*Map); !ok {
		t.Errorf("expected a *Map in the sequence, got %T", seq[2])
	}
	alias, _ := m.Get("alias")
	if am, ok := alias.(*Map); !ok || !reflect.DeepEqual(am.Keys(), []string{"y", "x"}) {
		t.Errorf("unexpected alias value %#v", alias)
	}
	if v, ok := m.Get("empty"); !ok || v != nil {
		t.Errorf("expected a nil value, got %#v", v)
	}

	out, err := MustCompile("{{#each v, k in alpha}}{{k}};{{/each}}{{ zeta + 1 }}").RenderString(&m)
	if err != nil {
		t.Fatal(err)
	}
	if out != "second;first;2" {
		t.Errorf("unexpected render %q", out)
	}
}

func TestMapUnmarshalYAMLNotAMapping(t *testing.T) {
	var m Map
	err := yaml.Unmarshal([]byte("- a\n- b\n"), &m)
	if err == nil || !strings.Contains(err.Error(), "expected a mapping") {
		t.Errorf("expected a mapping error, got %v", err)
	}
}

func TestReadYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")
	if err := os.WriteFile(base, []byte("title: Base\nitems: [a, b]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(override, []byte("title: Override\nextra: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ReadYAMLFiles(base, override)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"title", "items", "extra"}) {
		t.Errorf("unexpected keys %v", got)
	}
	if v, _ := m.Get("title"); v != "Override" {
		t.Errorf("expected the later file to win, got %v", v)
	}

	if m, err := ReadYAMLFiles(); err != nil || m.Len() != 0 {
		t.Errorf("expected an empty map, got %v, %v", m, err)
	}
	if _, err := ReadYAMLFiles(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

