// capsulegen - binding compiler for capsule-based native APIs
//
// Reads declaration files (YAML or HCL) describing native classes, enums
// and functions, and writes the CPython glue, the Python wrappers and,
// optionally, a Go host package and a c-shared plugin skeleton.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/chazu/capsulegen/pkg/cache"
	"github.com/chazu/capsulegen/pkg/codegen"
	"github.com/chazu/capsulegen/pkg/decl"
	"github.com/chazu/capsulegen/pkg/runtime"
)

var (
	outDir    = flag.String("out", ".", "output directory")
	goPackage = flag.String("go-package", "", "also generate a Go host package with this name")
	pyPackage = flag.String("python-package", "", "Python package the generated modules import _api and capsule from")
	plugin    = flag.Bool("plugin", false, "also generate a c-shared plugin skeleton")
	snippets  = flag.String("snippets", "", "YAML file mapping snippet ids to Python source")
	useCache  = flag.Bool("cache", true, "skip writing files unchanged since the last run")
	cachePath = flag.String("cache-db", "", "cache database path (default <out>/.capsulegen.db)")
	dryRun    = flag.Bool("dry-run", false, "show what would be generated without writing")
	verbose   = flag.Bool("v", false, "verbose logging")
	version   = flag.Bool("version", false, "print version and exit")
)

const versionStr = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "capsulegen - binding compiler for capsule-based native APIs\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  capsulegen [options] decl.yaml [more.hcl ...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Printf("capsulegen version %s\n", versionStr)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()
	decl.SetLogger(logger.Named("decl"))
	codegen.SetLogger(logger.Named("codegen"))
	runtime.SetLogger(logger.Named("runtime"))

	if err := run(logger, flag.Args()); err != nil {
		logger.Error("generation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, paths []string) error {
	reg, err := decl.Load(paths...)
	if err != nil {
		return err
	}

	cfg := codegen.Config{
		GoPackage:     *goPackage,
		PythonPackage: *pyPackage,
		Plugin:        *plugin,
	}
	if *snippets != "" {
		if cfg.Snippets, err = loadSnippets(*snippets); err != nil {
			return err
		}
	}

	res, err := codegen.Generate(reg, cfg)
	if err != nil {
		return err
	}
	if *dryRun {
		for _, f := range res.Files {
			fmt.Fprintf(os.Stderr, "Dry run - would write %s (%d bytes)\n", filepath.Join(*outDir, f.Filename), len(f.Content))
		}
		return nil
	}

	var c *cache.Cache
	if *useCache {
		c, err = cache.New(&cache.Config{DBPath: *cachePath, Dir: *outDir})
		if err != nil {
			return err
		}
		defer c.Close()
	}
	w := &writer{out: *outDir, cache: c, runID: cache.NewRunID(), logger: logger}
	if err := w.writeAll(res); err != nil {
		return err
	}
	logger.Info("generation complete",
		zap.String("run", w.runID),
		zap.Int("written", w.written),
		zap.Int("unchanged", w.skipped))
	return nil
}

// newLogger logs human-readable output to a terminal and JSON otherwise.
func newLogger(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// loadSnippets reads a YAML map of snippet id to source.
func loadSnippets(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snippets: %w", err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding snippets %s: %w", path, err)
	}
	return out, nil
}

// writer puts generated files under out, skipping those the cache says are
// already up to date. A nil cache writes everything.
type writer struct {
	out     string
	cache   *cache.Cache
	runID   string
	logger  *zap.Logger
	written int
	skipped int
}

func (w *writer) writeAll(res *codegen.Result) error {
	for _, f := range res.Files {
		if err := w.write(f); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) write(f codegen.GeneratedFile) error {
	path := filepath.Join(w.out, filepath.FromSlash(f.Filename))
	if w.cache != nil {
		same, err := w.cache.Unchanged(path, f.Content)
		if err != nil {
			return err
		}
		if same {
			w.logger.Debug("unchanged", zap.String("path", path))
			w.skipped++
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, f.Content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	w.logger.Debug("wrote", zap.String("path", path), zap.Int("bytes", len(f.Content)))
	w.written++
	if w.cache != nil {
		return w.cache.Record(w.runID, path, f.Content)
	}
	return nil
}
