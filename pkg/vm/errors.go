package vm

import "errors"

// Sentinel errors for the ContractViolation / not-found / exhaustion classes
// of §7's error taxonomy. All are returned, never panicked.
var (
	// ErrDuplicateStart is returned by Insert when a range with the same
	// Start already lives in the tree.
	ErrDuplicateStart = errors.New("vm: duplicate range start")

	// ErrOverlapLeft and ErrOverlapRight are returned by Insert when the
	// candidate range overlaps its left or right neighbor in key order.
	ErrOverlapLeft  = errors.New("vm: overlaps left neighbor")
	ErrOverlapRight = errors.New("vm: overlaps right neighbor")

	// ErrNotFound names a miss: no range starts at the requested address.
	// No operation in this package returns it; Lookup reports a miss
	// through its boolean result.
	ErrNotFound = errors.New("vm: range not found")

	// ErrExhausted is returned by Alloc when no free range in [vstart, vend)
	// can satisfy the requested size/align.
	ErrExhausted = errors.New("vm: no suitable free range")

	// ErrInvalidAlign is returned by Alloc when align is zero or not a power
	// of two.
	ErrInvalidAlign = errors.New("vm: align must be a power of two")

	// ErrInvalidWindow is returned when a caller-supplied [start, end) window
	// fails the half-open ordering invariant (start < end).
	ErrInvalidWindow = errors.New("vm: invalid window, start must be < end")
)

// InvariantError carries a failed internal invariant. It is never returned
// as an error value; the tree panics with it, mirroring the source's
// BUG_ON()/assert(0) — these only fire under a prior bug in this package,
// not in response to bad caller input.
type InvariantError struct {
	Op      string
	Reason  string
}

func (e *InvariantError) Error() string {
	return "vm: invariant violated during " + e.Op + ": " + e.Reason
}

func panicInvariant(op, reason string) {
	panic(&InvariantError{Op: op, Reason: reason})
}

// IsInvariantFailure reports whether a recovered panic value r is an
// *InvariantError, letting callers (mainly tests) distinguish it from other
// panics.
func IsInvariantFailure(r any) bool {
	_, ok := r.(*InvariantError)
	return ok
}

// ProviderFailure carries a memory-provider allocation failure. Like
// InvariantError it is only ever panicked: a NodeProvider/RangeProvider is
// contractually never allowed to return nil on the nominal path (mirroring
// bpn_calloc_init's assert(0) on calloc failure), so observing nil here
// means the provider itself is broken.
type ProviderFailure struct {
	What string
}

func (e *ProviderFailure) Error() string {
	return "vm: memory provider failed to supply " + e.What
}

func panicProvider(what string) {
	panic(&ProviderFailure{What: what})
}

// IsProviderFailure reports whether a recovered panic value r is a
// *ProviderFailure.
func IsProviderFailure(r any) bool {
	_, ok := r.(*ProviderFailure)
	return ok
}
