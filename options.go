package nativecore

import (
	"io"

	"github.com/joeycumines/goja-nativecore/eventloop"
	"github.com/joeycumines/logiface"
)

// envOptions holds configuration options for Environment creation.
type envOptions struct {
	logger     *logiface.Logger[logiface.Event]
	loopOpts   []eventloop.LoopOption
	stdout     io.Writer
	stderr     io.Writer
	moduleDirs []string
}

// Option configures an Environment instance.
type Option interface {
	applyEnv(*envOptions) error
}

// envOptionImpl implements Option.
type envOptionImpl struct {
	applyEnvFunc func(*envOptions) error
}

func (o *envOptionImpl) applyEnv(opts *envOptions) error {
	return o.applyEnvFunc(opts)
}

// WithLogger configures structured logging for the environment, and every
// component it creates. A nil logger disables logging, which is the
// default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &envOptionImpl{func(opts *envOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLoopOptions appends options for the event loop. They are applied
// after the environment's own, so a loop logger given here wins.
func WithLoopOptions(loopOpts ...eventloop.LoopOption) Option {
	return &envOptionImpl{func(opts *envOptions) error {
		opts.loopOpts = append(opts.loopOpts, loopOpts...)
		return nil
	}}
}

// WithStdout sets the writer for console.log. Defaults to [io.Discard].
func WithStdout(w io.Writer) Option {
	return &envOptionImpl{func(opts *envOptions) error {
		opts.stdout = w
		return nil
	}}
}

// WithStderr sets the writer for console.error, console.warn and uncaught
// exception reports. Defaults to [io.Discard].
func WithStderr(w io.Writer) Option {
	return &envOptionImpl{func(opts *envOptions) error {
		opts.stderr = w
		return nil
	}}
}

// WithModuleDir adds a directory that require searches for modules not
// found relative to the requiring script, like NODE_PATH.
func WithModuleDir(dir string) Option {
	return &envOptionImpl{func(opts *envOptions) error {
		if dir == "" {
			return ErrEmptyModuleDir
		}
		opts.moduleDirs = append(opts.moduleDirs, dir)
		return nil
	}}
}

// resolveEnvOptions applies Option instances to envOptions.
func resolveEnvOptions(opts []Option) (*envOptions, error) {
	cfg := &envOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEnv(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
