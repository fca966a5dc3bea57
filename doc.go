// Package nativecore runs scripts on a goja runtime with an event loop and
// a small set of native modules: timers, file I/O, HTTP parsing, Buffer,
// console and process.
//
// # Usage
//
//	env, err := nativecore.New(nativecore.WithStdout(os.Stdout), nativecore.WithStderr(os.Stderr))
//	if err != nil {
//	    return err
//	}
//	defer env.Close()
//	if err := env.RunFile("main.js"); err != nil {
//	    return err
//	}
//	code, err := env.Run(ctx)
//
// # Script surface
//
// After [New] returns, scripts see the globals process, console, Buffer,
// setTimeout, setInterval, clearTimeout and clearInterval. The modules
// 'buffer', 'events', 'fs' and 'timers' are available through require,
// alongside files relative to the requiring script and any directory given
// by [WithModuleDir]. Native modules are reached directly with
// process.binding(process.binding.<name>), see [builtin.ModuleKind].
//
// # Exit
//
// A run ends with process.exit(code), or when the loop has no armed timers
// and no pending requests, in which case the process 'exit' event is
// emitted and process.exitCode is the result. An exception that escapes a
// callback is passed to the 'uncaughtException' listeners of process, and
// without any, it is reported on stderr and the script exits with code 1.
//
// # Concurrency
//
// An [Environment] is confined to one goroutine: the runtime, the loop and
// every native callback run on it. Only the blocking part of an fs request
// runs elsewhere, on the loop's worker pool.
package nativecore
