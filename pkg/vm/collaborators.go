package vm

import (
	"fmt"
	"io"
	"time"
)

// Clock is the only place wall-clock time enters this package. Root keeps
// the configured Clock but never reads it, so it is never read on
// Alloc/Free's functional path.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, wrapping time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DumpSink receives a textual snapshot of the tree for offline debugging.
// It is never invoked on the alloc/free hot path; Root only calls it when a
// caller explicitly asks for a dump.
type DumpSink interface {
	Dump(graph string)
}

// NoopDumpSink discards whatever is written to it; the default DumpSink.
type NoopDumpSink struct{}

func (NoopDumpSink) Dump(string) {}

// DotDumpSink writes a Graphviz description of the tree to W, in the same
// shape debug.c's build_graph produces for the C original.
type DotDumpSink struct {
	W io.Writer
}

func (d DotDumpSink) Dump(graph string) {
	if d.W == nil {
		return
	}
	fmt.Fprintln(d.W, graph)
}

// Stats is a point-in-time snapshot of the tree's shape, for callers that
// want to sample gauges (tree depth, free-range count/bytes, fragmentation)
// without walking the tree themselves. It is an O(N) walk, same caveat as
// Dump: never call it on the Alloc/Free hot path.
type Stats struct {
	Depth       int
	FreeRanges  int
	FreeBytes   uint64
	LargestFree uint64
}

// Stats walks the whole tree and reports its current shape.
func (r *Root) Stats() Stats {
	var depth int
	var freeRanges int
	var freeBytes uint64
	var walk func(n *Node, d int)
	walk = func(n *Node, d int) {
		if n.isLeaf() {
			if d > depth {
				depth = d
			}
			freeRanges += len(n.ranges)
			for _, ra := range n.ranges {
				freeBytes += ra.Size()
			}
			return
		}
		for _, c := range n.children {
			walk(c, d+1)
		}
	}
	if r.root != nil {
		walk(r.root, 0)
	}
	return Stats{
		Depth:       depth,
		FreeRanges:  freeRanges,
		FreeBytes:   freeBytes,
		LargestFree: maxAvail(r.root),
	}
}

// Dump renders the current tree as a Graphviz "digraph" description and
// hands it to r's configured DumpSink. It walks the whole tree, so callers
// should treat it as an offline/debug operation, never a hot-path one.
func (r *Root) Dump() {
	var b []byte
	b = append(b, "digraph bpt {\n"...)
	var id int
	var walk func(n *Node) string
	walk = func(n *Node) string {
		name := fmt.Sprintf("n%d", id)
		id++
		if n.isLeaf() {
			b = append(b, fmt.Sprintf("  %s [shape=record,label=\"", name)...)
			for i, ra := range n.ranges {
				if i > 0 {
					b = append(b, '|')
				}
				b = append(b, ra.String()...)
			}
			b = append(b, "\"];\n"...)
			return name
		}
		b = append(b, fmt.Sprintf("  %s [shape=record,label=\"", name)...)
		for i, k := range n.keys {
			if i > 0 {
				b = append(b, '|')
			}
			b = append(b, fmt.Sprintf("%#x", k)...)
		}
		b = append(b, "\"];\n"...)
		for _, c := range n.children {
			childName := walk(c)
			b = append(b, fmt.Sprintf("  %s -> %s;\n", name, childName)...)
		}
		return name
	}
	walk(r.root)
	b = append(b, "}\n"...)
	r.dump.Dump(string(b))
}
