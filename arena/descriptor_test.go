package arena

import "testing"

func TestFieldDescriptorRejectsDuplicateIDs(t *testing.T) {
	defs := []FieldDef{
		{ID: 1, Name: "a", Type: FieldScalar, Mutability: PerTick},
		{ID: 1, Name: "b", Type: FieldScalar, Mutability: Static},
	}
	if _, err := NewFieldDescriptor(defs, 10); err == nil {
		t.Fatalf("expected duplicate field id to be rejected")
	}
}

func TestFieldDescriptorFieldsByMutability(t *testing.T) {
	defs := []FieldDef{
		{ID: 1, Name: "pos", Type: FieldVector, Components: 2, Mutability: PerTick},
		{ID: 2, Name: "mass", Type: FieldScalar, Mutability: Static},
		{ID: 3, Name: "owner", Type: FieldScalar, Mutability: Sparse},
		{ID: 4, Name: "vel", Type: FieldVector, Components: 2, Mutability: PerTick},
	}
	desc, err := NewFieldDescriptor(defs, 5)
	if err != nil {
		t.Fatalf("NewFieldDescriptor: %v", err)
	}

	perTick := desc.FieldsByMutability(PerTick)
	if len(perTick) != 2 || perTick[0] != 1 || perTick[1] != 4 {
		t.Fatalf("FieldsByMutability(PerTick) = %v, want [1 4] in insertion order", perTick)
	}

	_, meta, ok := desc.Get(1)
	if !ok {
		t.Fatalf("Get(1) not found")
	}
	if meta.TotalLen != 10 {
		t.Fatalf("TotalLen = %d, want 10 (5 cells * 2 components)", meta.TotalLen)
	}
}

func TestFieldDescriptorSetHandleIsolatedByClone(t *testing.T) {
	defs := []FieldDef{{ID: 1, Name: "x", Type: FieldScalar, Mutability: Sparse}}
	desc, err := NewFieldDescriptor(defs, 1)
	if err != nil {
		t.Fatalf("NewFieldDescriptor: %v", err)
	}

	clone := desc.Clone()
	clone.SetHandle(1, Handle{Generation: 9, Segment: 2, Offset: 3, Length: 1, Location: LocSparse})

	h, _, _ := desc.Get(1)
	if h.Generation != 0 {
		t.Fatalf("original descriptor mutated by clone's SetHandle: generation=%d", h.Generation)
	}

	ch, _, _ := clone.Get(1)
	if ch.Generation != 9 {
		t.Fatalf("clone SetHandle did not apply: generation=%d", ch.Generation)
	}
}

func TestFieldDescriptorOverflowRejected(t *testing.T) {
	defs := []FieldDef{{ID: 1, Name: "huge", Type: FieldVector, Components: 1 << 20, Mutability: PerTick}}
	if _, err := NewFieldDescriptor(defs, 1<<20); err == nil {
		t.Fatalf("expected overflow of N*components to be rejected")
	}
}
