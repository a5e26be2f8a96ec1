package vm

// maxAvail recomputes the augment for n: the largest contiguous free range
// reachable under n. For an internal node this is the max of its children's
// subAvail slots; for a leaf it is the largest range currently stored there
// (bpn_max_avail).
func maxAvail(n *Node) uint64 {
	var avail uint64
	if n.isInternal() {
		for _, a := range n.subAvail {
			if a > avail {
				avail = a
			}
		}
		return avail
	}
	for _, ra := range n.ranges {
		if sz := ra.Size(); sz > avail {
			avail = sz
		}
	}
	return avail
}

// descentPath records the root-to-leaf path taken by a single descent: the
// node visited at each level (nodes[0] is the root, nodes[len-1] is the
// leaf) and the child index chosen to move from nodes[i] to nodes[i+1].
// It stands in for the source's parent/ppos fields, scoped to a single
// operation instead of kept on every node (see DESIGN.md's Open Question
// decision on descent tracking).
type descentPath struct {
	nodes []*Node
	idx   []int
}

func (p *descentPath) leaf() *Node {
	return p.nodes[len(p.nodes)-1]
}

// ancestors returns the path excluding the leaf itself, root first.
func (p *descentPath) ancestors() []*Node {
	return p.nodes[:len(p.nodes)-1]
}

// descendSearch walks from n purely by key comparison, recording the path,
// and returns the leaf reached. It performs no structural changes; used by
// delete, lookup, and the cross-leaf coalesce repair (fixup_subavail's
// equivalent, since there are no persistent parent pointers to follow).
func descendSearch(n *Node, key uint64) descentPath {
	path := descentPath{nodes: []*Node{n}}
	for n.isInternal() {
		i := childIndexFor(n, key)
		path.idx = append(path.idx, i)
		n = n.children[i]
		path.nodes = append(path.nodes, n)
	}
	return path
}

// repairUpward climbs path from the leaf to the root, recomputing each
// ancestor's subAvail slot for the child it descended through. It stops as
// soon as a slot's recomputed value matches what's already stored
// (fixup_metadata's early-exit), since nothing above that point can have
// changed either.
func repairUpward(path descentPath) {
	child := path.leaf()
	ancestors := path.ancestors()
	for i := len(ancestors) - 1; i >= 0; i-- {
		parent := ancestors[i]
		slot := path.idx[i]
		avail := maxAvail(child)
		if parent.subAvail[slot] == avail {
			return
		}
		parent.subAvail[slot] = avail
		child = parent
	}
}

// repairSeparatorRewrite repairs subAvail along the path to the leaf that
// searchKey descends to, from that leaf up to the root, exactly like repairUpward, except the path is
// rediscovered by key search rather than supplied by the caller: this is
// used after a cross-leaf coalesce rewrites a distant leaf's contents
// without having that leaf on the current operation's descent path
// (fixup_subavail's equivalent).
func repairSeparatorRewrite(root *Node, searchKey uint64) {
	path := descendSearch(root, searchKey)
	repairUpward(path)
}
