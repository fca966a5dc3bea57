// Package binding is the bridge between native Go code and the goja script
// engine.
//
// A [Bridge] is bound to exactly one [goja.Runtime]. It constructs [Value]
// handles, adapts [Handler] functions into script-callable functions and
// constructors, attaches native state to script objects, and owns the
// deferred (next-tick) queue drained by [Bridge.MakeCallback].
//
// # Ownership
//
// Every [Value] is either [Strong] or [Borrowed]:
//   - A strong value is counted by the bridge when acquired, and must be
//     released exactly once with [Value.Release].
//   - A borrowed value is valid only until the [Scope] that produced it
//     closes. The arguments and receiver exposed by a [CallContext] are
//     borrowed from the scope of that call.
//
// Violating either rule (double release, use after release, use of a
// borrowed value after its scope closed, property access on a non-object,
// missing native data) is a bug in native code, and panics with a
// [*PreconditionError]. Such panics are not converted to script exceptions.
//
// # Calls
//
// A [Handler] receives a [CallContext]. It returns nil on success, having
// optionally set a result via [CallContext.Return]. To raise a script
// exception it returns the error produced by [CallContext.Throw] (or
// [CallContext.ThrowValue]). Any other error is raised as a Go error
// object.
package binding
