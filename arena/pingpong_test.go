package arena

import "testing"

func testDefs() []FieldDef {
	return []FieldDef{
		{ID: 1, Name: "pos", Type: FieldVector, Components: 2, Mutability: PerTick},
		{ID: 2, Name: "radius", Type: FieldScalar, Mutability: Static},
		{ID: 3, Name: "owner", Type: FieldScalar, Mutability: Sparse},
	}
}

func newTestArena(t *testing.T) *PingPongArena {
	t.Helper()
	p, err := NewPingPongArena(Config{Defs: testDefs(), N: 4, SegmentSize: 64, MaxSegments: 4})
	if err != nil {
		t.Fatalf("NewPingPongArena: %v", err)
	}
	return p
}

func TestPingPongArenaPublishAdvancesSnapshot(t *testing.T) {
	p := newTestArena(t)

	static, err := p.StaticWriter().Write(2)
	if err != nil {
		t.Fatalf("static write: %v", err)
	}
	for i := range static {
		static[i] = 1.5
	}

	wa := p.BeginTick()
	pos, err := wa.Write(1)
	if err != nil {
		t.Fatalf("write pos: %v", err)
	}
	pos[0] = 10

	p.Publish(wa)

	snap := p.Snapshot()
	if snap.TickID() != 1 {
		t.Fatalf("TickID() = %d, want 1", snap.TickID())
	}
	got, ok := snap.Read(1)
	if !ok || got[0] != 10 {
		t.Fatalf("Read(1) = %v, ok=%v, want [10 ...]", got, ok)
	}
	radius, ok := snap.Read(2)
	if !ok || radius[0] != 1.5 {
		t.Fatalf("Read(2) = %v, ok=%v, want [1.5 ...]", radius, ok)
	}
}

func TestPingPongArenaRollbackLeavesPublishedUnchanged(t *testing.T) {
	p := newTestArena(t)

	wa1 := p.BeginTick()
	v, _ := wa1.Write(1)
	v[0] = 99
	p.Publish(wa1)

	wa2 := p.BeginTick()
	v2, _ := wa2.Write(1)
	v2[0] = -1
	p.Rollback(wa2) // discarded, not published

	snap := p.Snapshot()
	got, _ := snap.Read(1)
	if got[0] != 99 {
		t.Fatalf("Read(1) after rollback = %v, want 99 (unchanged)", got[0])
	}
	if snap.TickID() != 1 {
		t.Fatalf("TickID() after rollback = %d, want 1 (unchanged)", snap.TickID())
	}
}

func TestPingPongArenaSparsePersistsAcrossTicksUntilOverwritten(t *testing.T) {
	p := newTestArena(t)

	wa1 := p.BeginTick()
	owner, _ := wa1.Write(3)
	owner[0] = 42
	p.Publish(wa1)

	// Next tick writes nothing to field 3; it must still read as 42.
	wa2 := p.BeginTick()
	got, ok := wa2.Read(3)
	if !ok || got[0] != 42 {
		t.Fatalf("Read(3) on untouched tick = %v, ok=%v, want [42]", got, ok)
	}
	p.Publish(wa2)

	snap := p.Snapshot()
	got2, ok := snap.Read(3)
	if !ok || got2[0] != 42 {
		t.Fatalf("sparse field did not persist: %v", got2)
	}
}

func TestWriteArenaSparseCowPreservesUntouchedCells(t *testing.T) {
	p := newTestArena(t)

	wa1 := p.BeginTick()
	owner, _ := wa1.Write(3)
	for i := range owner {
		owner[i] = float32(i + 1)
	}
	p.Publish(wa1)

	// Next tick triggers CoW on field 3 but only mutates cell 0; the rest
	// of the newly allocated slice must carry over the previous
	// generation's values, not come back zeroed.
	wa2 := p.BeginTick()
	owner2, err := wa2.Write(3)
	if err != nil {
		t.Fatalf("write(3): %v", err)
	}
	owner2[0] = 99
	p.Publish(wa2)

	snap := p.Snapshot()
	got, ok := snap.Read(3)
	if !ok {
		t.Fatalf("Read(3) after CoW: not found")
	}
	want := []float32{99, 2, 3, 4}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("Read(3)[%d] = %v, want %v (CoW must preserve untouched cells)", i, got[i], w)
		}
	}
}

func TestWriteArenaSparseWriteTwiceInOneTickReusesStagingSlice(t *testing.T) {
	p := newTestArena(t)

	wa := p.BeginTick()
	first, err := wa.Write(3)
	if err != nil {
		t.Fatalf("write(3): %v", err)
	}
	first[0] = 1
	first[1] = 2

	second, err := wa.Write(3)
	if err != nil {
		t.Fatalf("second write(3): %v", err)
	}
	if second[0] != 1 || second[1] != 2 {
		t.Fatalf("second Write(3) in the same tick lost the first write's values: %v", second)
	}
	second[2] = 3
	p.Publish(wa)

	snap := p.Snapshot()
	got, _ := snap.Read(3)
	want := []float32{1, 2, 3, 0}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("Read(3)[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestBeginTickPreallocatesUnwrittenPerTickField(t *testing.T) {
	p := newTestArena(t)

	// Field 1 (PerTick, 2 components) is never written this tick.
	wa := p.BeginTick()
	p.Publish(wa)

	snap := p.Snapshot()
	got, ok := snap.Read(1)
	if !ok {
		t.Fatalf("Read(1) after an untouched tick: not found")
	}
	if len(got) != 2*4 {
		t.Fatalf("Read(1) length = %d, want %d (pre-allocated, not zero-length)", len(got), 2*4)
	}
	for i, v := range got {
		if v != 0 {
			t.Fatalf("Read(1)[%d] = %v, want 0 (fresh PerTick allocation)", i, v)
		}
	}
}

func TestOwnedSnapshotIsIndependentOfFurtherTicks(t *testing.T) {
	p := newTestArena(t)

	wa1 := p.BeginTick()
	v, _ := wa1.Write(1)
	v[0] = 1
	p.Publish(wa1)

	owned := p.OwnedSnapshot()

	wa2 := p.BeginTick()
	v2, _ := wa2.Write(1)
	v2[0] = 2
	p.Publish(wa2)

	got, _ := owned.Read(1)
	if got[0] != 1 {
		t.Fatalf("owned snapshot mutated by later tick: %v, want 1", got[0])
	}
}

func TestWriteArenaRefusesStaticWrite(t *testing.T) {
	p := newTestArena(t)
	wa := p.BeginTick()
	if _, err := wa.Write(2); err == nil {
		t.Fatalf("expected write to static field to be refused")
	}
}
