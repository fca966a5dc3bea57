package eventloop

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)       [RunOnce()]
//	StateRunning (3) → StateSleeping (2)    [RunOnce() blocks]
//	StateSleeping (2) → StateRunning (3)    [timer due / completion ready]
//	StateRunning (3) → StateAwake (0)       [RunOnce() returns]
//	StateAwake (0) → StateTerminating (4)   [Close()]
//	StateTerminating (4) → StateTerminated (1) [workers drained]
//	StateTerminated (1) → (terminal)
type LoopState uint64

const (
	// StateAwake indicates the loop is idle between RunOnce calls.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been closed.
	StateTerminated LoopState = 1
	// StateSleeping indicates RunOnce is blocked waiting for a timer or
	// completion.
	StateSleeping LoopState = 2
	// StateRunning indicates RunOnce is dispatching callbacks.
	StateRunning LoopState = 3
	// StateTerminating indicates Close has been called and is waiting for
	// in-flight ops.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// TimerState is the arm state of a [Timer].
type TimerState uint8

const (
	// TimerIdle indicates the timer is not scheduled.
	TimerIdle TimerState = iota
	// TimerArmed indicates the timer is scheduled on the loop.
	TimerArmed
	// TimerClosed indicates the timer was closed, and may not be restarted.
	TimerClosed
)

// String returns a human-readable representation of the state.
func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "Idle"
	case TimerArmed:
		return "Armed"
	case TimerClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
