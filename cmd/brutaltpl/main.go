// Command brutaltpl renders a template file with YAML data to stdout.
//
//	brutaltpl [-d data.yaml]... [-s key=value]... [-r] [-v] [-w] template
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/zaste/brutaltpl"
)

const usage = `usage: brutaltpl [options] template

options:
  -d FILE      merge a YAML data file into the context (repeatable)
  -s KEY=VAL   set a top-level value, VAL is read as a YAML scalar (repeatable)
  -r           do not HTML-escape interpolated values
  -v           log debug diagnostics to stderr
  -w           watch the template and render again when it changes
  -h           show this help
`

type options struct {
	dataFiles []string
	sets      []string
	raw       bool
	verbose   bool
	watch     bool
	template  string
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	errColor := color.New(color.FgRed)
	fail := func(err error) int {
		errColor.Fprintf(stderr, "brutaltpl: %v\n", err)
		return 1
	}

	opt, err := parseArgs(args)
	if err != nil {
		fmt.Fprint(stderr, usage)
		return fail(err)
	}
	if opt == nil {
		fmt.Fprint(stdout, usage)
		return 0
	}

	level := slog.LevelWarn
	if opt.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	data, err := loadData(opt)
	if err != nil {
		return fail(err)
	}

	compileOpts := []brutaltpl.Option{brutaltpl.WithLogger(logger), brutaltpl.WithEscape(!opt.raw)}
	rm := brutaltpl.NewReloadManager(500*time.Millisecond, compileOpts...)
	tmpl, err := rm.WatchFile(opt.template)
	if err != nil {
		return fail(err)
	}
	if err := tmpl.Render(stdout, data); err != nil {
		return fail(err)
	}
	if !opt.watch {
		return 0
	}

	rm.AddCallback(func(filename string, t *brutaltpl.Template, err error) {
		if err == nil {
			err = t.Render(stdout, data)
		}
		if err != nil {
			errColor.Fprintf(stderr, "brutaltpl: %v\n", err)
		}
	})
	if err := rm.Start(); err != nil {
		return fail(err)
	}
	defer rm.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return 0
}

// parseArgs returns nil options when help was requested.
func parseArgs(args []string) (*options, error) {
	opts, optind, err := getopt.Getopts(args, "d:s:rvwh")
	if err != nil {
		return nil, err
	}
	o := &options{}
	for _, optV := range opts {
		switch optV.Option {
		case 'd':
			o.dataFiles = append(o.dataFiles, optV.Value)
		case 's':
			o.sets = append(o.sets, optV.Value)
		case 'r':
			o.raw = true
		case 'v':
			o.verbose = true
		case 'w':
			o.watch = true
		case 'h':
			return nil, nil
		}
	}
	rest := args[optind:]
	if len(rest) != 1 {
		return nil, fmt.Errorf("expected one template file, got %d", len(rest))
	}
	o.template = rest[0]
	return o, nil
}

// loadData merges the data files in order, then applies -s overrides.
func loadData(o *options) (*brutaltpl.Map, error) {
	data, err := brutaltpl.ReadYAMLFiles(o.dataFiles...)
	if err != nil {
		return nil, err
	}
	for _, kv := range o.sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("-s %q: expected KEY=VALUE", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		data.Set(key, v)
	}
	return data, nil
}
