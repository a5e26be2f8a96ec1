// ABOUTME: Unit tests for Alloc's fit classification and validation
// ABOUTME: Covers LEFT_EDGE/RIGHT_EDGE clipping and input validation errors

package vm

import (
	"errors"
	"testing"
)

func TestClassifyVAFit(t *testing.T) {
	va := &Range{Start: 100, End: 200}
	cases := []struct {
		name            string
		nvaStart, size  uint64
		want            fitType
	}{
		{"full", 100, 100, fitFull},
		{"left edge", 100, 50, fitLeftEdge},
		{"right edge", 150, 50, fitRightEdge},
		{"interior", 120, 30, fitInterior},
		{"none: starts before va", 90, 30, fitNone},
		{"none: ends after va", 180, 30, fitNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyVAFit(va, c.nvaStart, c.size); got != c.want {
				t.Fatalf("classifyVAFit() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestAllocLeftEdgeClip(t *testing.T) {
	r := newEmptyTestRoot(t)
	mustInsert(t, r, 0, 100)

	ra, err := r.Alloc(40, 1, 0, 1000)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ra.Start != 0 || ra.End != 40 {
		t.Fatalf("expected [0,40), got %v", ra)
	}
	verifyInvariants(t, r)

	remaining, ok := r.Lookup(40)
	if !ok || remaining.End != 100 {
		t.Fatalf("expected remaining [40,100), got ok=%v %v", ok, remaining)
	}
}

func TestAllocRightEdgeClip(t *testing.T) {
	r := newEmptyTestRoot(t)
	mustInsert(t, r, 0, 100)

	ra, err := r.Alloc(40, 1, 60, 1000)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if ra.Start != 60 || ra.End != 100 {
		t.Fatalf("expected [60,100), got %v", ra)
	}
	verifyInvariants(t, r)

	remaining, ok := r.Lookup(0)
	if !ok || remaining.End != 60 {
		t.Fatalf("expected remaining [0,60), got ok=%v %v", ok, remaining)
	}
}

func TestAllocValidation(t *testing.T) {
	r := newEmptyTestRoot(t)
	mustInsert(t, r, 0, 100)

	if _, err := r.Alloc(0, 1, 0, 100); err == nil {
		t.Fatalf("expected an error for zero size")
	}
	if _, err := r.Alloc(10, 3, 0, 100); !errors.Is(err, ErrInvalidAlign) {
		t.Fatalf("expected ErrInvalidAlign for non-power-of-two align, got %v", err)
	}
	if _, err := r.Alloc(10, 1, 50, 50); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow for vstart >= vend, got %v", err)
	}
}
