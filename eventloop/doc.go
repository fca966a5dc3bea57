// Package eventloop provides the single-goroutine event loop that drives the
// native core: a timer heap for durable timer handles, and a bounded worker
// pool for one-shot requests whose completions are dispatched back on the
// loop goroutine.
//
// # Architecture
//
// A [Loop] owns two kinds of work:
//   - [Timer] handles, created by [Loop.NewTimer], armed with [Timer.Start]
//     and disarmed with [Timer.Stop]. An armed timer keeps the loop alive.
//   - Requests, submitted with [Loop.Submit]. The op runs on a worker
//     goroutine; its completion runs on the loop goroutine during a later
//     [Loop.RunOnce]. A pending request keeps the loop alive.
//
// # Execution Model
//
// Each [Loop.RunOnce] call:
//  1. runs every timer whose deadline has passed (earliest deadline first)
//  2. runs every completion that is already available
//  3. if nothing ran and the loop is alive, blocks until the next timer
//     deadline or the next completion, then runs whatever became ready
//
// RunOnce reports whether the loop is still alive, mirroring libuv's
// UV_RUN_ONCE. [Loop.Run] calls RunOnce until the loop is no longer alive or
// the context is done.
//
// # Thread Safety
//
// Except for the op passed to [Loop.Submit], which runs on a worker
// goroutine, every method and every callback runs on the goroutine that
// drives the loop. There is no locking on that path.
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	t := loop.NewTimer()
//	_ = t.Start(10*time.Millisecond, 0, func() {
//	    fmt.Println("fired")
//	})
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package eventloop
