// Package vm implements a virtual-address range allocator on top of an
// augmented, order-bounded B+ tree: a set of disjoint free address intervals
// indexed so that the lowest-address range satisfying a sized, aligned
// request can be found, carved, and later coalesced back in logarithmic
// time.
package vm

// Order is the tree's branching factor (max children per internal node).
// Kept even and >= 4 so that after a preemptive split both halves satisfy
// the minimum-entries bound in the same pass (see vm.h: BPT_ORDER).
const Order = 24

const (
	// MaxEntries is the maximum number of keys/ranges a node may hold.
	MaxEntries = Order - 1

	// MinEntriesLeaf is the minimum number of ranges a non-root leaf must hold.
	MinEntriesLeaf = MaxEntries / 2

	// MinEntriesInternal is the minimum number of keys a non-root internal
	// node must hold.
	MinEntriesInternal = Order/2 - 1
)

// PageSize gates the effective-length rule for Alloc: alignments at or below
// PageSize need no extra padding, above it the worst-case alignment slop
// (align-1) is added to the requested size before the augmented search.
const PageSize = 4096

// DefaultVStart and DefaultVEnd mirror vm.h's VMALLOC_START/VMALLOC_END —
// example bounds for callers (cmd/vmrangectl) that don't have their own
// window. Init itself takes vstart/vend as arguments; these are not used
// internally.
const (
	DefaultVStart = 0xffffb30940000000
	DefaultVEnd   = 0xffffd3093fffffff
)
