// Package builtin implements the native modules exposed to scripts through
// process.binding: buffer, console, fs, httpparser, process and timer.
//
// Modules are constructed lazily, once, by a [Registry], which owns every
// durable binding its modules create (timers and HTTP parsers) and releases
// them on [Registry.Close]. Like the rest of the core, a Registry is
// confined to the goroutine running its [eventloop.Loop].
//
// Script facing failures follow one taxonomy: bad arguments throw a
// TypeError before any native work, out of range values throw a RangeError,
// and failed system calls either throw (synchronous form) or are passed as
// the first argument of the completion callback (asynchronous form), never
// both.
//
// [eventloop.Loop]: github.com/joeycumines/goja-nativecore/eventloop.Loop
package builtin
