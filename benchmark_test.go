package brutaltpl

import (
	"html/template"
	"io"
	"strings"
	"testing"
)

const pageSource = `
<html>
<head><title>{{ title | trim | upper }}</title></head>
<body>
  <ul>
  {{#each item, i in items}}
    <li class="{{ i % 2 == 0 ? 'even' : 'odd' }}">{{ item.name }} - {{ item.price }}</li>
  {{/each}}
  </ul>
  {{#if user.admin}}<div class="admin">Hi, {{ user.name }}</div>{{#else}}<div>Welcome!</div>{{/if}}
</body>
</html>`

var (
	pageTpl *Template
	htmlTpl *template.Template
	data    = map[string]any{
		"title": "  Products  ",
		"user":  map[string]any{"name": "Orgware", "admin": true},
		"items": []map[string]any{{"name": "Alpha", "price": 100}, {"name": "Beta", "price": 120}},
	}
)

func init() {
	pageTpl = MustCompile(pageSource)

	var err error
	htmlTpl, err = template.New("test").Funcs(template.FuncMap{
		"trim":  fastTrim,
		"upper": strings.ToUpper,
		"even":  func(i int) bool { return i%2 == 0 },
	}).Parse(`
<html>
<head><title>{{.Title | trim | upper }}</title></head>
<body>
  <ul>
  {{range $i, $item := .Items}}
    <li class="{{if even $i}}even{{else}}odd{{end}}">{{$item.Name}} - {{$item.Price}}</li>
  {{end}}
  </ul>
  {{if .User.Admin}}<div class="admin">Hi, {{.User.Name}}</div>{{else}}<div>Welcome!</div>{{end}}
</body>
</html>`)
	if err != nil {
		panic(err)
	}
}

type benchItem struct {
	Name  string
	Price int
}

type benchPage struct {
	Title string
	User  struct {
		Name  string
		Admin bool
	}
	Items []benchItem
}

func newBenchPage() benchPage {
	p := benchPage{
		Title: "  Products  ",
		Items: []benchItem{{Name: "Alpha", Price: 100}, {Name: "Beta", Price: 120}},
	}
	p.User.Name = "Orgware"
	p.User.Admin = true
	return p
}

func BenchmarkRender(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pageTpl.Render(io.Discard, data)
	}
}

func BenchmarkRenderStruct(b *testing.B) {
	page := newBenchPage()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pageTpl.Render(io.Discard, page)
	}
}

func BenchmarkRenderNoExprCache(b *testing.B) {
	tpl := MustCompile(pageSource, WithExprCache(false))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tpl.Render(io.Discard, data)
	}
}

func BenchmarkRenderParallel(b *testing.B) {
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = pageTpl.Render(io.Discard, data)
		}
	})
}

func BenchmarkCompile(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Compile(pageSource)
	}
}

func BenchmarkCompileCached(b *testing.B) {
	cc := NewCompileCache(0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cc.Compile(pageSource)
	}
}

func BenchmarkHTMLTemplate(b *testing.B) {
	page := newBenchPage()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = htmlTpl.Execute(io.Discard, page)
	}
}

func TestBenchmarkTemplatesAgree(t *testing.T) {
	var want strings.Builder
	if err := htmlTpl.Execute(&want, newBenchPage()); err != nil {
		t.Fatal(err)
	}
	for name, ctx := range map[string]any{"map": data, "struct": newBenchPage()} {
		got, err := pageTpl.RenderString(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != want.String() {
			t.Errorf("%s: expected\n%s\ngot\n%s", name, want.String(), got)
		}
	}
}
