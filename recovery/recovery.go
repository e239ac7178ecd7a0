// Package recovery centralizes the policy for structural problems found in
// damaged files. Components report each problem through a Strategy and act
// on the returned Action, so one code path serves both strict validation
// and best-effort reading.
package recovery

// Context carries cancellation into strategy callbacks. Any context.Context
// satisfies it.
type Context interface{ Done() <-chan struct{} }

// Location identifies where a problem was found.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

// Strategy is consulted once per problem and decides how the caller
// proceeds. Implementations used across goroutines must be safe for
// concurrent calls.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Action is the caller's marching order after a reported problem.
type Action int

const (
	// ActionFail aborts the surrounding operation.
	ActionFail Action = iota
	// ActionSkip drops the damaged piece and continues without it.
	ActionSkip
	// ActionFix patches the damaged piece with a best guess and continues.
	ActionFix
	// ActionWarn keeps the piece as parsed and continues.
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}
