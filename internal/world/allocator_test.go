package world

import (
	"errors"
	"testing"
)

func TestAllocator_LowestFreeFirst(t *testing.T) {
	a := NewUniqueIDAllocator()

	for want := 0; want < 10; want++ {
		id, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if int(id) != want {
			t.Fatalf("Allocate() = %d, want %d", id, want)
		}
	}

	a.Deallocate(3)
	a.Deallocate(7)

	id, err := a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Errorf("Allocate() after freeing 3 and 7 = %d, want 3", id)
	}

	id, err = a.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Errorf("Allocate() = %d, want 7", id)
	}
}

func TestAllocator_Exhaustion(t *testing.T) {
	a := NewUniqueIDAllocator()

	seen := make(map[uint8]bool)
	for i := 0; i <= MaxEntityID; i++ {
		id, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate() #%d error = %v", i, err)
		}
		if seen[id] {
			t.Fatalf("Allocate() reissued live id %d", id)
		}
		seen[id] = true
	}

	if a.Live() != MaxEntityID+1 {
		t.Fatalf("Live() = %d, want %d", a.Live(), MaxEntityID+1)
	}

	if _, err := a.Allocate(); !errors.Is(err, ErrIDsExhausted) {
		t.Errorf("Allocate() on full pool error = %v, want ErrIDsExhausted", err)
	}

	// 255 is the wire's self sentinel and must never be issued.
	if seen[255] {
		t.Error("allocator issued reserved id 255")
	}
}

func TestAllocator_DeallocateFreeIsNoOp(t *testing.T) {
	a := NewUniqueIDAllocator()

	a.Deallocate(42)
	if a.Live() != 0 {
		t.Errorf("Live() = %d, want 0", a.Live())
	}

	id, err := a.Allocate()
	if err != nil || id != 0 {
		t.Errorf("Allocate() = %d, %v, want 0, nil", id, err)
	}
}
