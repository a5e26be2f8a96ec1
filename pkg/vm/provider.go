package vm

import "sync"

// NodeProvider supplies the fixed-size interior and leaf pages the tree is
// built from. A NodeProvider must never return nil on its nominal path —
// if it cannot honor a request it must panic with a *ProviderFailure,
// mirroring bpn_calloc_init's assert(0) on calloc failure.
type NodeProvider interface {
	AcquireNode(leaf bool) *Node
	ReleaseNode(n *Node)
}

// RangeProvider supplies *Range values, with the same never-nil contract as
// NodeProvider.
type RangeProvider interface {
	AcquireRange(start, end uint64) *Range
	ReleaseRange(r *Range)
}

// poolNodeProvider is the default NodeProvider, backed by a pair of
// sync.Pool instances (one per node kind) so repeated split/merge churn
// reuses backing arrays instead of hammering the allocator, the same
// recycling idea the teacher's pkg/storage/freelist.go applies to disk
// pages, generalized here to in-process node objects.
type poolNodeProvider struct {
	leaves sync.Pool
	inner  sync.Pool
}

// NewPoolNodeProvider constructs the default sync.Pool-backed NodeProvider.
func NewPoolNodeProvider() NodeProvider {
	p := &poolNodeProvider{}
	p.leaves.New = func() any { return newLeaf() }
	p.inner.New = func() any { return newInternal() }
	return p
}

func (p *poolNodeProvider) AcquireNode(leaf bool) *Node {
	var n *Node
	if leaf {
		n, _ = p.leaves.Get().(*Node)
	} else {
		n, _ = p.inner.Get().(*Node)
	}
	if n == nil {
		panicProvider("node")
	}
	return n
}

func (p *poolNodeProvider) ReleaseNode(n *Node) {
	if n == nil {
		panicProvider("release of nil node")
	}
	if n.isLeaf() {
		n.ranges = n.ranges[:0]
		n.prev, n.next = nil, nil
		p.leaves.Put(n)
	} else {
		n.keys = n.keys[:0]
		n.children = n.children[:0]
		n.subAvail = n.subAvail[:0]
		p.inner.Put(n)
	}
}

// poolRangeProvider is the default RangeProvider, backed by a sync.Pool of
// *Range values.
type poolRangeProvider struct {
	pool sync.Pool
}

// NewPoolRangeProvider constructs the default sync.Pool-backed RangeProvider.
func NewPoolRangeProvider() RangeProvider {
	p := &poolRangeProvider{}
	p.pool.New = func() any { return &Range{} }
	return p
}

func (p *poolRangeProvider) AcquireRange(start, end uint64) *Range {
	ra, _ := p.pool.Get().(*Range)
	if ra == nil {
		panicProvider("range")
	}
	ra.Start, ra.End = start, end
	return ra
}

func (p *poolRangeProvider) ReleaseRange(ra *Range) {
	if ra == nil {
		panicProvider("release of nil range")
	}
	ra.Start, ra.End = 0, 0
	p.pool.Put(ra)
}
