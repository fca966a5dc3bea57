// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultWorkers is the size of the worker pool used to run submitted ops,
// when not configured with [WithWorkers].
const DefaultWorkers = 4

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger  *logiface.Logger[logiface.Event]
	now     func() time.Time
	workers int
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger configures structured logging for the loop. A nil logger
// disables logging, which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWorkers sets the maximum number of ops (see [Loop.Submit]) that may run
// concurrently. Must be positive.
func WithWorkers(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return &RangeError{Message: "eventloop: workers must be positive"}
		}
		opts.workers = n
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		workers: DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
