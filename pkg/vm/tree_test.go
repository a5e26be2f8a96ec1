// ABOUTME: Unit tests for split geometry and leaf-chain threading
// ABOUTME: Covers splitLeaf/splitInternal directly, below the Root-level API

package vm

import "testing"

func fullLeaf() *Node {
	n := newLeaf()
	for i := 0; i < MaxEntries; i++ {
		start := uint64(i * 10)
		n.leafInsertAt(i, &Range{Start: start, End: start + 5})
	}
	return n
}

func TestSplitLeafGeometry(t *testing.T) {
	left := fullLeaf()
	right := newLeaf()

	wantRightCount := split(MaxEntries)
	wantLeftCount := MaxEntries - wantRightCount

	splitKey := splitLeaf(left, right)

	if len(left.ranges) != wantLeftCount {
		t.Fatalf("left has %d ranges, want %d", len(left.ranges), wantLeftCount)
	}
	if len(right.ranges) != wantRightCount {
		t.Fatalf("right has %d ranges, want %d", len(right.ranges), wantRightCount)
	}
	if splitKey != right.ranges[0].Start {
		t.Fatalf("splitKey = %#x, want right's first key %#x", splitKey, right.ranges[0].Start)
	}
	if left.next != right || right.prev != left {
		t.Fatalf("expected left/right to be threaded into the leaf chain")
	}
	if left.ranges[len(left.ranges)-1].End > right.ranges[0].Start {
		t.Fatalf("left's last range overlaps right's first range")
	}
}

func TestSplitLeafPreservesChainNeighbors(t *testing.T) {
	left := fullLeaf()
	farRight := newLeaf()
	farRight.ranges = append(farRight.ranges, &Range{Start: 100000, End: 100010})
	left.next = farRight
	farRight.prev = left

	right := newLeaf()
	splitLeaf(left, right)

	if right.next != farRight {
		t.Fatalf("expected right.next to be the original far-right leaf")
	}
	if farRight.prev != right {
		t.Fatalf("expected far-right leaf's prev to be re-linked to right")
	}
}

func fullInternal() *Node {
	n := newInternal()
	n.children = append(n.children, newLeaf())
	for i := 0; i < MaxEntries; i++ {
		n.keys = append(n.keys, uint64(i*10+5))
		n.children = append(n.children, newLeaf())
		n.subAvail = append(n.subAvail, 0)
	}
	n.subAvail = append(n.subAvail, 0)
	return n
}

func TestSplitInternalGeometry(t *testing.T) {
	left := fullInternal()
	right := newInternal()

	wantRightCount := split(MaxEntries) - 1
	wantLeftCount := MaxEntries - (wantRightCount + 1)

	splitKey := left.keys[wantLeftCount]
	gotKey := splitInternal(left, right)

	if gotKey != splitKey {
		t.Fatalf("splitKey = %#x, want %#x", gotKey, splitKey)
	}
	if len(left.keys) != wantLeftCount {
		t.Fatalf("left has %d keys, want %d", len(left.keys), wantLeftCount)
	}
	if len(left.children) != wantLeftCount+1 {
		t.Fatalf("left has %d children, want %d", len(left.children), wantLeftCount+1)
	}
	if len(right.keys) != wantRightCount {
		t.Fatalf("right has %d keys, want %d", len(right.keys), wantRightCount)
	}
	if len(right.children) != wantRightCount+1 {
		t.Fatalf("right has %d children, want %d", len(right.children), wantRightCount+1)
	}
}

// internalWith builds an internal node with n keys (10, 20, 30, ...) and
// n+1 freshly allocated leaf children, entirely for identity/value checks
// on rotation — the children are never descended into.
func internalWith(n int) *Node {
	node := newInternal()
	node.children = append(node.children, newLeaf())
	node.subAvail = append(node.subAvail, 0)
	for i := 0; i < n; i++ {
		node.keys = append(node.keys, uint64((i+1)*10))
		node.children = append(node.children, newLeaf())
		node.subAvail = append(node.subAvail, 0)
	}
	return node
}

// TestShiftRightInternalPromotesOldLastKey pins down the donation direction
// tryShiftRight must use for internal siblings: the key promoted into the
// parent is l's old last key (the one paired with the child being donated
// to rt), not whatever key happens to be last in l after truncation.
func TestShiftRightInternalPromotesOldLastKey(t *testing.T) {
	l := internalWith(MinEntriesInternal + 1)
	rt := internalWith(1)
	parent := newInternal()
	parent.children = append(parent.children, l, rt)
	parent.subAvail = append(parent.subAvail, 0, 0)
	parent.keys = append(parent.keys, 1000)

	wantPromoted := l.keys[l.entries()-1]
	wantDonatedChild := l.children[l.entries()]

	if !tryShiftRight(l, rt, parent, 0) {
		t.Fatalf("expected tryShiftRight to succeed")
	}

	if parent.keys[0] != wantPromoted {
		t.Fatalf("parent separator = %d, want l's old last key %d", parent.keys[0], wantPromoted)
	}
	if rt.keys[0] != 1000 {
		t.Fatalf("rt's new first key should be the old separator 1000, got %d", rt.keys[0])
	}
	if rt.children[0] != wantDonatedChild {
		t.Fatalf("rt did not receive l's last child")
	}
}

// TestShiftRightLeafPromotesDonatedStart is the leaf-level mirror of
// TestShiftRightInternalPromotesOldLastKey: the separator must become the
// Start of the range donated into rt (now rt.ranges[0]), not whatever
// range is left last in l after the donation is removed.
func TestShiftRightLeafPromotesDonatedStart(t *testing.T) {
	var pairs [][2]uint64
	for i := 0; i < MinEntriesLeaf+1; i++ {
		start := uint64(i * 10)
		pairs = append(pairs, [2]uint64{start, start + 5})
	}
	l := leafWith(pairs...)
	rt := leafWith([2]uint64{1000, 1005})
	parent := newInternal()
	parent.children = append(parent.children, l, rt)
	parent.subAvail = append(parent.subAvail, 0, 0)
	parent.keys = append(parent.keys, 500)

	wantSep := l.ranges[l.entries()-1].Start

	if !tryShiftRight(l, rt, parent, 0) {
		t.Fatalf("expected tryShiftRight to succeed")
	}

	if parent.keys[0] != wantSep {
		t.Fatalf("parent separator = %d, want donated range's start %d", parent.keys[0], wantSep)
	}
	if rt.ranges[0].Start != wantSep {
		t.Fatalf("rt's first range should be the donated one starting at %d, got %d", wantSep, rt.ranges[0].Start)
	}
}

func TestRootInsertForcesSplitAndStaysBalanced(t *testing.T) {
	r := newEmptyTestRoot(t)
	for i := 0; i < MaxEntries+1; i++ {
		start := uint64(i * 10)
		mustInsert(t, r, start, start+5)
	}
	verifyInvariants(t, r)

	if r.root.isLeaf() {
		t.Fatalf("expected split to have produced an internal root")
	}
	for i := 0; i < MaxEntries+1; i++ {
		start := uint64(i * 10)
		if _, ok := r.Lookup(start); !ok {
			t.Fatalf("range starting at %d missing after split", start)
		}
	}
}
