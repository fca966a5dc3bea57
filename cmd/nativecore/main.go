// Command nativecore runs a script file, and exits with its exit code.
//
//	nativecore [-log-level debug] [-module-dir dir]... script.js
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	nativecore "github.com/joeycumines/goja-nativecore"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sys/unix"
)

// levelFlag parses a logiface level by its keyword, e.g. "info".
type levelFlag logiface.Level

func (x *levelFlag) String() string {
	return logiface.Level(*x).String()
}

func (x *levelFlag) Set(s string) error {
	for l := logiface.LevelDisabled; l <= logiface.LevelTrace; l++ {
		if l.String() == s {
			*x = levelFlag(l)
			return nil
		}
	}
	return fmt.Errorf("unknown log level %q", s)
}

type dirsFlag []string

func (x *dirsFlag) String() string {
	return strings.Join(*x, ",")
}

func (x *dirsFlag) Set(s string) error {
	*x = append(*x, s)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("nativecore", flag.ContinueOnError)
	level := levelFlag(logiface.LevelWarning)
	var dirs dirsFlag
	fs.Var(&level, "log-level", "log level of the runtime's diagnostics")
	fs.Var(&dirs, "module-dir", "directory searched by require, may be repeated")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), "usage: nativecore [flags] script.js")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.Level(level)),
	).Logger()

	opts := []nativecore.Option{
		nativecore.WithLogger(logger),
		nativecore.WithStdout(os.Stdout),
		nativecore.WithStderr(os.Stderr),
	}
	for _, dir := range dirs {
		opts = append(opts, nativecore.WithModuleDir(dir))
	}

	env, err := nativecore.New(opts...)
	if err != nil {
		logger.Err().Err(err).Log("failed to create environment")
		return 1
	}
	defer env.Close()

	if err := env.RunFile(fs.Arg(0)); err != nil {
		logger.Err().Err(err).Str("script", fs.Arg(0)).Log("failed to run script")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	code, err := env.Run(ctx)
	if err != nil {
		logger.Err().Err(err).Log("script stopped")
		if code == 0 {
			code = 1
		}
	}
	return code
}
