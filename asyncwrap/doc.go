// Package asyncwrap ties native asynchronous resources to script objects
// and their completion callbacks.
//
// There are two lifecycles:
//   - [HandleWrap] is durable. It is attached to a script object when the
//     object is constructed, and survives any number of Start / Stop cycles
//     until closed. Its resource (for example an [eventloop.Timer]) is
//     always stopped before the wrap is destroyed.
//   - [ReqWrap] is one-shot. It is created per operation, completes exactly
//     once, and is released as part of that completion.
//
// Every callback runs through [binding.Bridge.MakeCallback], so deferred
// work scheduled by a callback is drained before control returns to the
// loop. A [Tracker] counts allocations and releases per kind, so tests can
// verify that every binding is released exactly once.
//
// [eventloop.Timer]: github.com/joeycumines/goja-nativecore/eventloop.Timer
package asyncwrap
