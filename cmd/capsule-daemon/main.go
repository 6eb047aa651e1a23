// capsule-daemon - serves a binding over a stdin/stdout JSON protocol
//
// The daemon loads declaration files, binds their methods to the symbols
// exported by c-shared plugins built from the generated plugin skeleton, and
// answers one JSON request per line.
//
// Build: go build ./cmd/capsule-daemon
// Usage: capsule-daemon -plugin libllvm.so [-plugin more.so] decl.yaml ...
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chazu/capsulegen/pkg/capsule"
	"github.com/chazu/capsulegen/pkg/decl"
	"github.com/chazu/capsulegen/pkg/runtime"
)

// pluginList collects repeated -plugin flags.
type pluginList []string

func (p *pluginList) String() string { return strings.Join(*p, ",") }

func (p *pluginList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

var (
	plugins         pluginList
	allowUnresolved = flag.Bool("allow-unresolved", false, "start even if declared symbols are missing from every plugin")
	debug           = flag.Bool("debug", false, "enable debug output to stderr")
)

func main() {
	flag.Var(&plugins, "plugin", "c-shared library exporting CapsuleSymbols and CapsuleInvoke (repeatable)")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()
	decl.SetLogger(logger.Named("decl"))
	runtime.SetLogger(logger.Named("runtime"))

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: capsule-daemon -plugin lib.so decl.yaml [more.hcl ...]\n")
		os.Exit(2)
	}

	d, err := setup(flag.Args(), plugins, *allowUnresolved)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	d.logger = logger

	if err := d.Run(os.Stdin, os.Stdout); err != nil {
		logger.Error("daemon stopped", zap.Error(err))
		os.Exit(1)
	}
}

// setup loads declarations and plugins and compiles the glue between them.
func setup(declPaths, pluginPaths []string, allowUnresolved bool) (*Daemon, error) {
	reg, err := decl.Load(declPaths...)
	if err != nil {
		return nil, err
	}

	var lib runtime.Chain
	for _, path := range pluginPaths {
		p, err := runtime.OpenPlugin(path)
		if err != nil {
			return nil, err
		}
		lib = append(lib, p)
	}

	var opts []runtime.Option
	if allowUnresolved {
		opts = append(opts, runtime.AllowUnresolved())
	}
	glue, err := runtime.Compile(reg, lib, opts...)
	if err != nil {
		return nil, err
	}
	return NewDaemon(reg, runtime.NewHost(reg, glue, capsule.NewClassRegistry())), nil
}

func newLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
}
