package binding

import (
	"github.com/joeycumines/logiface"
)

// bridgeOptions holds configuration options for Bridge creation.
type bridgeOptions struct {
	logger   *logiface.Logger[logiface.Event]
	uncaught func(err error)
}

// BridgeOption configures a Bridge instance.
type BridgeOption interface {
	applyBridge(*bridgeOptions) error
}

// bridgeOptionImpl implements BridgeOption.
type bridgeOptionImpl struct {
	applyBridgeFunc func(*bridgeOptions) error
}

func (o *bridgeOptionImpl) applyBridge(opts *bridgeOptions) error {
	return o.applyBridgeFunc(opts)
}

// WithLogger configures structured logging for the bridge. A nil logger
// disables logging, which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) BridgeOption {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUncaughtHandler sets the initial handler for exceptions escaping
// callbacks, see [Bridge.SetUncaughtHandler].
func WithUncaughtHandler(fn func(err error)) BridgeOption {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.uncaught = fn
		return nil
	}}
}

// resolveBridgeOptions applies BridgeOption instances to bridgeOptions.
func resolveBridgeOptions(opts []BridgeOption) (*bridgeOptions, error) {
	cfg := &bridgeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBridge(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
