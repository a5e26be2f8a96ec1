package vm

import "fmt"

// Root is a virtual-address range allocator: an augmented, order-bounded
// B+ tree indexing the disjoint free ranges of some [vstart, vend) window.
// It is not safe for concurrent use — callers that need that must
// serialize their own access (Non-goal: no lock-free concurrent access).
type Root struct {
	root *Node

	nodeProvider  NodeProvider
	rangeProvider RangeProvider
	clock         Clock
	dump          DumpSink
}

// Config supplies Root's collaborators. NodeProvider and RangeProvider are
// required; Clock and Dump default to SystemClock{} and NoopDumpSink{}.
type Config struct {
	NodeProvider  NodeProvider
	RangeProvider RangeProvider
	Clock         Clock
	Dump          DumpSink
}

// NewRoot builds an uninitialized allocator from cfg. Call Init before any
// other operation.
func NewRoot(cfg Config) *Root {
	if cfg.NodeProvider == nil {
		panicInvariant("NewRoot", "nil NodeProvider")
	}
	if cfg.RangeProvider == nil {
		panicInvariant("NewRoot", "nil RangeProvider")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Dump == nil {
		cfg.Dump = NoopDumpSink{}
	}
	return &Root{
		nodeProvider:  cfg.NodeProvider,
		rangeProvider: cfg.RangeProvider,
		clock:         cfg.Clock,
		dump:          cfg.Dump,
	}
}

// Init seeds the allocator with a single free range covering the whole
// [vstart, vend) window (vm_init_free_space). It must be called exactly
// once before Alloc/Free/Insert/Lookup.
func (r *Root) Init(vstart, vend uint64) error {
	if vstart >= vend {
		return fmt.Errorf("vm: Init: %w", ErrInvalidWindow)
	}
	r.root = r.nodeProvider.AcquireNode(true)
	ra := r.rangeProvider.AcquireRange(vstart, vend)
	return r.insertRange(ra)
}

// Destroy releases every node reachable from the root back to the
// configured NodeProvider (bpt_root_destroy generalized to release every
// page, not just the root, since our provider actually recycles memory).
func (r *Root) Destroy() {
	var release func(n *Node)
	release = func(n *Node) {
		if n.isInternal() {
			for _, c := range n.children {
				release(c)
			}
		} else {
			for _, ra := range n.ranges {
				r.rangeProvider.ReleaseRange(ra)
			}
		}
		r.nodeProvider.ReleaseNode(n)
	}
	if r.root != nil {
		release(r.root)
	}
	r.root = nil
}

// Lookup returns the range starting exactly at start, if one is currently
// free.
func (r *Root) Lookup(start uint64) (*Range, bool) {
	return r.lookup(start)
}

// Insert adds ra to the free set, coalescing it with any abutting
// neighbor(s). It is the operation Free is built on; it is also exposed
// directly so callers can seed additional free windows beyond what Init
// covers.
func (r *Root) Insert(ra *Range) error {
	if ra == nil || ra.Start >= ra.End {
		return fmt.Errorf("vm: Insert: %w", ErrInvalidWindow)
	}
	return r.insertRange(ra)
}

// Free returns a previously allocated range to the free set
// (free_vmap_area): identical to Insert, since the tree only ever tracks
// free ranges — "allocating" means clipping a free range down, never
// moving it to a separate allocated-set structure.
func (r *Root) Free(ra *Range) error {
	return r.Insert(ra)
}

// Alloc finds the lowest-addressed free range able to hold a size-byte,
// align-aligned window within [vstart, vend), carves it out, and returns
// the carved range (alloc_vmap_area / va_alloc). align must be a power of
// two; vend is exclusive.
func (r *Root) Alloc(size, align, vstart, vend uint64) (*Range, error) {
	if size == 0 {
		return nil, fmt.Errorf("vm: Alloc: zero size: %w", ErrInvalidWindow)
	}
	if align == 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("vm: Alloc: %w", ErrInvalidAlign)
	}
	if vstart >= vend {
		return nil, fmt.Errorf("vm: Alloc: %w", ErrInvalidWindow)
	}

	length := size
	if align > PageSize {
		length = size + align - 1
	}

	va := r.lookupSmallestVA(length, size, align, vstart)
	if va == nil {
		return nil, ErrExhausted
	}

	var nvaStart uint64
	if va.Start > vstart {
		nvaStart = alignUp(va.Start, align)
	} else {
		nvaStart = alignUp(vstart, align)
	}
	if nvaStart+size > vend || nvaStart+size < nvaStart {
		return nil, ErrExhausted
	}

	if err := r.clipVA(va, nvaStart, size); err != nil {
		return nil, err
	}

	return r.rangeProvider.AcquireRange(nvaStart, nvaStart+size), nil
}

func alignUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}

// fitsWithin reports whether a size-byte, align-aligned window can be
// carved out of va at or after vstart, without overflowing (is_within_this_va).
func fitsWithin(va *Range, size, align, vstart uint64) bool {
	var nvaStart uint64
	if va.Start > vstart {
		nvaStart = alignUp(va.Start, align)
	} else {
		nvaStart = alignUp(vstart, align)
	}
	if nvaStart+size < nvaStart || nvaStart < vstart {
		return false
	}
	return nvaStart+size <= va.End
}

// bptLookupLowestLeaf descends the tree using the subAvail augment to find
// the lowest-keyed leaf that might contain a range of at least length
// bytes starting at or after vstart (bpt_lookup_lowest_leaf).
func bptLookupLowestLeaf(root *Node, length, vstart uint64) descentPath {
	path := descentPath{nodes: []*Node{root}}
	n := root
	for n.isInternal() {
		i := 0
		for ; i < n.entries(); i++ {
			if vstart < n.keys[i] && n.subAvail[i] >= length {
				break
			}
		}
		path.idx = append(path.idx, i)
		n = n.children[i]
		path.nodes = append(path.nodes, n)
	}
	return path
}

// leafGetVACond linearly scans leaf for the first range (in key order)
// that fits size/align at or after vstart (leaf_get_va_cond).
func leafGetVACond(leaf *Node, size, align, vstart uint64) *Range {
	for _, ra := range leaf.ranges {
		if fitsWithin(ra, size, align, vstart) {
			return ra
		}
	}
	return nil
}

// firstNextSubAvail climbs path from the leaf's parent upward, looking for
// the first sibling slot strictly to the right of the one just visited
// whose subAvail can satisfy length. It reports the new vstart to retry
// the augmented search from (first_next_sub_avail).
func firstNextSubAvail(path descentPath, length uint64) (uint64, bool) {
	ancestors := path.ancestors()
	for i := len(ancestors) - 1; i >= 0; i-- {
		p := ancestors[i]
		from := path.idx[i] + 1
		for j := from; j < p.entries()+1; j++ {
			if p.subAvail[j] >= length {
				return p.keys[j-1], true
			}
		}
	}
	return 0, false
}

// lookupSmallestVA implements the corrected, two-pass smallest-lowest-fit
// search: an augmented descent finds a candidate leaf, a linear scan of
// that leaf looks for an actual fit, and on a miss the search climbs to
// the next sibling subtree with enough room and retries exactly once
// (lookup_smallest_va — this is the fixed replacement for the source's
// buggy single-pass bpt_lookup_smallest; see DESIGN.md).
func (r *Root) lookupSmallestVA(length, size, align, vstart uint64) *Range {
	for i := 0; i < 2; i++ {
		path := bptLookupLowestLeaf(r.root, length, vstart)
		leaf := path.leaf()

		if va := leafGetVACond(leaf, size, align, vstart); va != nil {
			return va
		}

		next, ok := firstNextSubAvail(path, length)
		if !ok {
			break
		}
		vstart = next
	}
	return nil
}

type fitType int

const (
	fitNone fitType = iota
	fitFull
	fitLeftEdge
	fitRightEdge
	fitInterior
)

// classifyVAFit determines how a carved [nvaStart, nvaStart+size) window
// sits inside va (classify_va_fit_type).
func classifyVAFit(va *Range, nvaStart, size uint64) fitType {
	if nvaStart < va.Start || nvaStart+size > va.End {
		return fitNone
	}
	switch {
	case va.Start == nvaStart && va.End == nvaStart+size:
		return fitFull
	case va.Start == nvaStart:
		return fitLeftEdge
	case va.End == nvaStart+size:
		return fitRightEdge
	default:
		return fitInterior
	}
}

// clipVA carves [nvaStart, nvaStart+size) out of va, a range stored in the
// tree, updating the tree to reflect whatever remains (va_clip): a full fit
// deletes va outright; an edge fit shrinks va in place; an interior fit
// shrinks va and reinserts the left remainder as a brand new free range.
func (r *Root) clipVA(va *Range, nvaStart, size uint64) error {
	switch classifyVAFit(va, nvaStart, size) {
	case fitFull:
		if r.deleteRange(va.Start) == nil {
			panicInvariant("clipVA", "full-fit range missing on delete")
		}
		r.rangeProvider.ReleaseRange(va)
		return nil
	case fitLeftEdge:
		// Raising va.Start moves the first key of its leaf when va is the
		// leaf's first range, so the ancestor separator that held the old
		// Start is rewritten to the new one.
		oldStart := va.Start
		va.Start += size
		path := descendSearch(r.root, va.Start)
		for i, p := range path.ancestors() {
			if j := path.idx[i]; j > 0 && p.keys[j-1] == oldStart {
				p.keys[j-1] = va.Start
			}
		}
		repairUpward(path)
		return nil
	case fitRightEdge:
		va.End = nvaStart
	case fitInterior:
		remainder := r.rangeProvider.AcquireRange(va.Start, nvaStart)
		va.Start = nvaStart + size
		if err := r.insertRange(remainder); err != nil {
			return err
		}
	default:
		panicInvariant("clipVA", "carved window does not fit source range")
	}

	// A right-edge fit leaves va.Start unchanged, and an interior fit
	// reinserts the remainder at the old Start, so no separator changes
	// here; only the subAvail augment needs repair, via a fresh
	// search-based path since clipVA isn't handed the descent that found va.
	repairUpward(descendSearch(r.root, va.Start))
	return nil
}
