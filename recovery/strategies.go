package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy fails on the first problem. Use it when a damaged file
// must be rejected rather than repaired.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (*StrictStrategy) OnError(Context, error, Location) Action { return ActionFail }

// LenientStrategy patches what it can and records every problem it saw.
// Safe for concurrent use.
type LenientStrategy struct {
	mu   sync.Mutex
	errs []error
}

func NewLenientStrategy() *LenientStrategy { return &LenientStrategy{} }

func (s *LenientStrategy) OnError(_ Context, err error, loc Location) Action {
	s.mu.Lock()
	s.errs = append(s.errs, fmt.Errorf("%s at offset %d: %w", loc.Component, loc.ByteOffset, err))
	s.mu.Unlock()
	return ActionFix
}

// Errors returns the problems recorded so far, oldest first.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}
