// Command brutalserve serves the templates of a directory over HTTP for
// previewing. GET /name renders dir/name.html with the data file; query
// arguments are available as query.<key>.
//
//	brutalserve [-a addr] [-d data.yaml] dir
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"github.com/valyala/fasthttp"

	"github.com/zaste/brutaltpl"
)

type server struct {
	dir    string
	data   *brutaltpl.Map
	cache  *brutaltpl.FileCache
	logger *slog.Logger
}

func main() {
	addr := ":8080"
	var dataFiles []string

	opts, optind, err := getopt.Getopts(os.Args, "a:d:h")
	if err != nil {
		fatal(err)
	}
	for _, optV := range opts {
		switch optV.Option {
		case 'a':
			addr = optV.Value
		case 'd':
			dataFiles = append(dataFiles, optV.Value)
		case 'h':
			fmt.Println("usage: brutalserve [-a addr] [-d data.yaml]... dir")
			return
		}
	}
	if len(os.Args[optind:]) != 1 {
		fatal(errors.New("expected one template directory"))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	data, err := brutaltpl.ReadYAMLFiles(dataFiles...)
	if err != nil {
		fatal(err)
	}
	s := newServer(os.Args[optind], data, logger)

	logger.Info("starting preview server", "addr", addr, "dir", s.dir)
	srv := &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	if err := srv.ListenAndServe(addr); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "brutalserve: %v\n", err)
	os.Exit(1)
}

func newServer(dir string, data *brutaltpl.Map, logger *slog.Logger) *server {
	return &server{
		dir:    dir,
		data:   data,
		cache:  brutaltpl.NewFileCache(0, brutaltpl.WithLogger(logger)),
		logger: logger,
	}
}

// templatePath maps a request path to a file under dir. "/" is index.html and
// a missing extension means .html.
func (s *server) templatePath(path string) (string, bool) {
	name := strings.Trim(path, "/")
	if name == "" {
		name = "index"
	}
	if filepath.Ext(name) == "" {
		name += ".html"
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", false
	}
	return filepath.Join(s.dir, clean), true
}

func (s *server) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	filename, ok := s.templatePath(string(ctx.Path()))
	if !ok {
		ctx.Error("not found", fasthttp.StatusNotFound)
		return
	}
	tmpl, err := s.cache.CompileFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ctx.Error("not found", fasthttp.StatusNotFound)
			return
		}
		s.logger.Warn("compile failed", "file", filename, "err", err)
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}

	query := brutaltpl.NewMap()
	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		query.Set(string(k), string(v))
	})
	data := brutaltpl.NewMap()
	data.Merge(s.data)
	data.Set("query", query)

	out, err := tmpl.RenderString(data)
	if err != nil {
		s.logger.Warn("render failed", "file", filename, "err", err)
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBodyString(out)
}
