package builtin

import (
	"io"

	"github.com/joeycumines/logiface"
)

// registryOptions holds configuration options for Registry creation.
type registryOptions struct {
	logger *logiface.Logger[logiface.Event]
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Registry instance.
type Option interface {
	applyRegistry(*registryOptions) error
}

// registryOptionImpl implements Option.
type registryOptionImpl struct {
	applyRegistryFunc func(*registryOptions) error
}

func (o *registryOptionImpl) applyRegistry(opts *registryOptions) error {
	return o.applyRegistryFunc(opts)
}

// WithLogger configures structured logging for the registry and its
// modules. A nil logger disables logging, which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &registryOptionImpl{func(opts *registryOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithStdout sets the writer backing console.log and console.info.
// Defaults to [io.Discard].
func WithStdout(w io.Writer) Option {
	return &registryOptionImpl{func(opts *registryOptions) error {
		if w != nil {
			opts.stdout = w
		}
		return nil
	}}
}

// WithStderr sets the writer backing console.error and console.warn, and
// the default uncaught exception report. Defaults to [io.Discard].
func WithStderr(w io.Writer) Option {
	return &registryOptionImpl{func(opts *registryOptions) error {
		if w != nil {
			opts.stderr = w
		}
		return nil
	}}
}

// resolveRegistryOptions applies Option instances to registryOptions.
func resolveRegistryOptions(opts []Option) (*registryOptions, error) {
	cfg := &registryOptions{
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRegistry(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
