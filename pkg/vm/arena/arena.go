// Package arena provides an mmap-backed NodeProvider/RangeProvider: a fixed
// memory budget reserved up front with syscall.Mmap, rather than the
// default provider's unbounded sync.Pool growth. It stands in for the
// allocator's "memory provider" collaborator in deployments that want a
// hard cap on how much backing memory the tree itself can consume.
package arena

import (
	"fmt"
	"sync"
	"syscall"

	"github.com/nainya/vmrange/pkg/vm"
)

// Config sizes the two slabs Provider reserves. NodeSlab/RangeSlab are byte
// counts; the number of usable slots is derived from them and a fixed
// per-record accounting size, mirroring the teacher's BTREE_PAGE_SIZE-sized
// page budget in pkg/storage/kv.go, generalized from on-disk pages to an
// in-process node/range budget.
type Config struct {
	NodeSlab  uint64
	RangeSlab uint64
}

const (
	nodeRecordSize  = 256 // accounting size per node slot, not a literal struct layout
	rangeRecordSize = 32
)

// Provider is a NodeProvider and RangeProvider backed by two anonymous mmap
// regions used purely as a capacity reservation: the regions are never read
// or written directly (Go's runtime, not this package, must own the memory
// backing *vm.Node/*vm.Range values). Reserving them up front claims
// address space for the configured budget from the start; since the pages
// are never touched they add to the process's virtual size, not its
// resident memory. This is the same "reserve, then allocate out of it"
// shape kv.go uses for page storage.
type Provider struct {
	nodeSlab  []byte
	rangeSlab []byte

	mu        sync.Mutex
	nodeCap   int
	nodeLive  int
	rangeCap  int
	rangeLive int
}

// NewProvider mmaps the two slabs described by cfg and returns a Provider
// ready to hand to vm.Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.NodeSlab == 0 {
		cfg.NodeSlab = 1 << 20
	}
	if cfg.RangeSlab == 0 {
		cfg.RangeSlab = 1 << 20
	}

	nodeSlab, err := mmapAnon(int(cfg.NodeSlab))
	if err != nil {
		return nil, fmt.Errorf("arena: mmap node slab: %w", err)
	}
	rangeSlab, err := mmapAnon(int(cfg.RangeSlab))
	if err != nil {
		_ = syscall.Munmap(nodeSlab)
		return nil, fmt.Errorf("arena: mmap range slab: %w", err)
	}

	return &Provider{
		nodeSlab:  nodeSlab,
		rangeSlab: rangeSlab,
		nodeCap:   len(nodeSlab) / nodeRecordSize,
		rangeCap:  len(rangeSlab) / rangeRecordSize,
	}, nil
}

func mmapAnon(size int) ([]byte, error) {
	return syscall.Mmap(-1, 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_ANON|syscall.MAP_PRIVATE)
}

// Close releases both mmap'd slabs. The Provider must not be used afterward.
func (p *Provider) Close() error {
	if err := syscall.Munmap(p.nodeSlab); err != nil {
		return err
	}
	return syscall.Munmap(p.rangeSlab)
}

// AcquireNode implements vm.NodeProvider, charging the request against the
// node slab's capacity and panicking with vm.ProviderFailure if the budget
// is exhausted, per the NodeProvider contract (never nil on the nominal
// path).
func (p *Provider) AcquireNode(leaf bool) *vm.Node {
	p.mu.Lock()
	if p.nodeLive >= p.nodeCap {
		p.mu.Unlock()
		panic(&vm.ProviderFailure{What: "arena: node slab exhausted"})
	}
	p.nodeLive++
	p.mu.Unlock()

	if leaf {
		return vm.NewLeafNode()
	}
	return vm.NewInternalNode()
}

// ReleaseNode implements vm.NodeProvider. The node itself is reclaimed by
// the garbage collector once unreachable; this only returns its slot to the
// slab's budget.
func (p *Provider) ReleaseNode(n *vm.Node) {
	if n == nil {
		panic(&vm.ProviderFailure{What: "arena: release of nil node"})
	}
	p.mu.Lock()
	p.nodeLive--
	p.mu.Unlock()
}

// AcquireRange implements vm.RangeProvider, with the same capacity-charging
// behavior as AcquireNode.
func (p *Provider) AcquireRange(start, end uint64) *vm.Range {
	p.mu.Lock()
	if p.rangeLive >= p.rangeCap {
		p.mu.Unlock()
		panic(&vm.ProviderFailure{What: "arena: range slab exhausted"})
	}
	p.rangeLive++
	p.mu.Unlock()

	ra, err := vm.NewRange(start, end)
	if err != nil {
		p.mu.Lock()
		p.rangeLive--
		p.mu.Unlock()
		panic(&vm.ProviderFailure{What: "arena: " + err.Error()})
	}
	return ra
}

// ReleaseRange implements vm.RangeProvider.
func (p *Provider) ReleaseRange(r *vm.Range) {
	if r == nil {
		panic(&vm.ProviderFailure{What: "arena: release of nil range"})
	}
	p.mu.Lock()
	p.rangeLive--
	p.mu.Unlock()
}
