package vm

// split halves an index rounding up (ceil(x/2)): splitLeaf gives the right
// half this many entries, so the right half gets the extra entry when
// MaxEntries is odd.
func split(x int) int {
	return (x >> 1) + (x & 1)
}

// splitInternal divides left's MaxEntries keys/children/subAvail across
// left and right, returning the separator key that moves up into the
// parent (bpn_split_internal: the key at the split boundary is promoted,
// not duplicated).
func splitInternal(left, right *Node) uint64 {
	rightCount := split(MaxEntries) - 1
	leftCount := MaxEntries - (rightCount + 1)

	splitKey := left.keys[leftCount]

	right.keys = copyInto(right.keys[:0], 0, left.keys, leftCount+1, rightCount)
	right.children = copyInto(right.children[:0], 0, left.children, leftCount+1, rightCount+1)
	right.subAvail = copyInto(right.subAvail[:0], 0, left.subAvail, leftCount+1, rightCount+1)

	left.keys = left.keys[:leftCount]
	left.children = left.children[:leftCount+1]
	left.subAvail = left.subAvail[:leftCount+1]

	return splitKey
}

// splitLeaf divides left's MaxEntries ranges across left and right, and
// threads right into the leaf chain immediately after left. Returns the
// separator key copied (not moved) into the parent, since the leaf chain
// needs the first range of "right" to remain there too
// (bpn_split_external).
func splitLeaf(left, right *Node) uint64 {
	rightCount := split(MaxEntries)
	leftCount := MaxEntries - rightCount

	right.ranges = copyInto(right.ranges[:0], 0, left.ranges, leftCount, rightCount)
	left.ranges = left.ranges[:leftCount]

	right.next = left.next
	right.prev = left
	if right.next != nil {
		right.next.prev = right
	}
	left.next = right

	return right.ranges[0].Start
}

// splitChild splits parent.children[pos] (which must be full) in place,
// inserting the promoted/copied separator key and the new right sibling
// into parent at pos (bpn_split).
func (r *Root) splitChild(parent *Node, pos int) {
	left := parent.children[pos]
	right := r.nodeProvider.AcquireNode(left.isLeaf())

	var splitKey uint64
	if left.isInternal() {
		splitKey = splitInternal(left, right)
	} else {
		splitKey = splitLeaf(left, right)
	}

	parent.keys = insertAt(parent.keys, pos, splitKey)
	parent.children = insertAt(parent.children, pos+1, right)
	parent.subAvail = insertAt(parent.subAvail, pos, maxAvail(left))
	parent.subAvail[pos+1] = maxAvail(right)
}

// splitRoot grows the tree by one level: the current root becomes the sole
// left child of a fresh internal root, which is then split at position 0
// (bpn_split_root).
func (r *Root) splitRoot() {
	old := r.root
	newRoot := r.nodeProvider.AcquireNode(false)
	newRoot.children = append(newRoot.children, old)
	newRoot.subAvail = append(newRoot.subAvail, maxAvail(old))
	r.splitChild(newRoot, 0)
	r.root = newRoot
}

// insertRange performs a preemptive-split insert of ra into the tree,
// coalescing it into an existing neighbor when possible (bpt_po_insert +
// bpt_insert_non_full + try_merge_va, folded into one pass).
func (r *Root) insertRange(ra *Range) error {
	if r.root.isFull() {
		r.splitRoot()
	}

	path := descentPath{nodes: []*Node{r.root}}
	n := r.root

	for n.isInternal() {
		pos, cc := search(n, ra.Start)
		p := n
		childIdx := pos
		if cc == posEQ {
			childIdx = pos + 1
		}

		path.idx = append(path.idx, childIdx)
		n = p.children[childIdx]
		path.nodes = append(path.nodes, n)

		if n.isFull() {
			r.splitChild(p, childIdx)

			if ra.Start >= p.keys[pos] {
				childIdx = pos + 1
				n = p.children[childIdx]
				path.nodes[len(path.nodes)-1] = n
				path.idx[len(path.idx)-1] = childIdx
			}
		}
	}

	pos, _ := search(n, ra.Start)

	merged, err := r.tryMergeFree(path, n, ra, pos)
	if err != nil {
		return err
	}
	if merged {
		return nil
	}

	if err := leafInsertValidated(n, pos, ra); err != nil {
		return err
	}
	repairUpward(path)
	return nil
}

// leafInsertValidated inserts ra into leaf n at pos after checking that it
// does not overlap either neighbor already stored there
// (bpn_insert_to_leaf).
func leafInsertValidated(n *Node, pos int, ra *Range) error {
	if pos < n.entries() {
		sibling := n.ranges[pos]
		if sibling.Start == ra.Start {
			return ErrDuplicateStart
		}
		if ra.End > sibling.Start {
			return ErrOverlapRight
		}
	}
	if pos > 0 {
		sibling := n.ranges[pos-1]
		if ra.Start < sibling.End {
			return ErrOverlapLeft
		}
	}
	n.leafInsertAt(pos, ra)
	return nil
}

// lookup finds the range whose Start equals key, if any (bpt_lookup).
func (r *Root) lookup(key uint64) (*Range, bool) {
	path := descendSearch(r.root, key)
	leaf := path.leaf()
	pos, cc := search(leaf, key)
	if cc != posEQ {
		return nil, false
	}
	return leaf.ranges[pos], true
}

// deleteRange removes the range starting at key from the tree, rebalancing
// preemptively on the way down (bpt_po_delete). It returns the removed
// range, or nil if key was not present.
func (r *Root) deleteRange(key uint64) *Range {
	n := r.root
	var parent *Node
	var pos int
	var cc posCC

	for {
		pos, cc = search(n, key)

		if n.isLeaf() {
			break
		}

		parent = n
		childIdx := pos
		if cc == posEQ {
			childIdx = pos + 1
		}
		n = parent.children[childIdx]

		if n.isAboveMin() {
			continue
		}

		l, lpos := bpnGetLeft(parent, pos)
		rt, rpos := bpnGetRight(parent, pos)

		var balanced bool
		if l == n {
			balanced = tryShiftLeft(l, rt, parent, pos)
		} else {
			balanced = tryShiftRight(l, rt, parent, pos)
		}

		if balanced {
			parent.subAvail[lpos] = maxAvail(l)
			parent.subAvail[rpos] = maxAvail(rt)
		} else {
			merged := mergeSiblings(parent, pos)
			parent.subAvail[lpos] = maxAvail(merged)
			r.nodeProvider.ReleaseNode(rt)
			n = merged

			if parent.entries() == 0 && parent == r.root {
				r.root = merged
				r.nodeProvider.ReleaseNode(parent)
			}
		}
	}

	if cc != posEQ {
		return nil
	}

	ra := n.leafRemoveAt(pos)
	path := descendSearch(r.root, key)
	// Removing a leaf's first range changes its first key: rewrite the
	// ancestor separator that held it.
	if pos == 0 && n.entries() > 0 {
		for i, p := range path.ancestors() {
			if j := path.idx[i]; j > 0 && p.keys[j-1] == key {
				p.keys[j-1] = n.ranges[0].Start
			}
		}
	}
	repairUpward(path)
	return ra
}

// bpnGetLeft returns the left child adjacent to the separator at pos in
// parent, and the subAvail slot that describes it.
func bpnGetLeft(parent *Node, pos int) (*Node, int) {
	if pos < parent.entries() {
		return parent.children[pos], pos
	}
	return parent.children[pos-1], pos - 1
}

// bpnGetRight returns the right child adjacent to the separator at pos in
// parent, and the subAvail slot that describes it.
func bpnGetRight(parent *Node, pos int) (*Node, int) {
	if pos < parent.entries() {
		return parent.children[pos+1], pos + 1
	}
	return parent.children[pos], pos
}

// tryShiftLeft donates one entry from r into l through the separator at
// parent.keys[pos], without putting either sibling out of balance
// (bpn_try_shift_left). Returns false (no-op) if r has nothing to spare or
// l has no room.
func tryShiftLeft(l, rt, parent *Node, pos int) bool {
	if pos == parent.entries() {
		pos--
	}
	if pos >= parent.entries() || l.isFull() || !rt.isAboveMin() {
		return false
	}

	if l.isInternal() {
		l.keys = append(l.keys, parent.keys[pos])
		parent.keys[pos] = rt.keys[0]
		rt.keys = removeAt(rt.keys, 0)

		l.children = append(l.children, rt.children[0])
		rt.children = removeAt(rt.children, 0)

		l.subAvail = append(l.subAvail, rt.subAvail[0])
		rt.subAvail = removeAt(rt.subAvail, 0)
	} else {
		l.ranges = append(l.ranges, rt.ranges[0])
		parent.keys[pos] = rt.ranges[1].Start
		rt.ranges = removeAt(rt.ranges, 0)
	}

	return true
}

// tryShiftRight donates one entry from l into r through the separator at
// parent.keys[pos] (bpn_try_shift_right), the mirror of tryShiftLeft.
func tryShiftRight(l, rt, parent *Node, pos int) bool {
	if pos == parent.entries() {
		pos--
	}
	if pos >= parent.entries() || rt.isFull() || !l.isAboveMin() {
		return false
	}

	if l.isInternal() {
		lastChild := l.entries()
		promoted := l.keys[lastChild-1]
		rt.keys = insertAt(rt.keys, 0, parent.keys[pos])
		rt.children = insertAt(rt.children, 0, l.children[lastChild])
		rt.subAvail = insertAt(rt.subAvail, 0, l.subAvail[lastChild])

		l.keys = l.keys[:lastChild-1]
		l.children = l.children[:lastChild]
		l.subAvail = l.subAvail[:lastChild]

		parent.keys[pos] = promoted
	} else {
		last := len(l.ranges) - 1
		sep := l.ranges[last].Start
		rt.ranges = insertAt(rt.ranges, 0, l.ranges[last])
		l.ranges = l.ranges[:last]

		parent.keys[pos] = sep
	}

	return true
}

// mergeSiblings absorbs the right child adjacent to parent.keys[pos] into
// the left one, shrinking parent by one entry, and returns the surviving
// (left) node (bpn_merge_siblings).
func mergeSiblings(parent *Node, pos int) *Node {
	l, _ := bpnGetLeft(parent, pos)
	rt, _ := bpnGetRight(parent, pos)

	if pos == parent.entries() {
		pos--
	}

	if l.isInternal() {
		l.keys = append(l.keys, parent.keys[pos])
		l.keys = append(l.keys, rt.keys...)
		l.children = append(l.children, rt.children...)
		l.subAvail = append(l.subAvail, rt.subAvail...)
	} else {
		l.ranges = append(l.ranges, rt.ranges...)
		l.next = rt.next
		if l.next != nil {
			l.next.prev = l
		}
	}

	parent.keys = removeAt(parent.keys, pos)
	parent.children = removeAt(parent.children, pos+1)
	parent.subAvail = removeAt(parent.subAvail, pos+1)

	return l
}
