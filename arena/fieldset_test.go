package arena

import "testing"

func TestFieldSetSetHas(t *testing.T) {
	s := NewFieldSet(130)
	s.Set(0)
	s.Set(65)
	s.Set(130)

	for _, id := range []FieldID{0, 65, 130} {
		if !s.Has(id) {
			t.Fatalf("expected Has(%d) = true", id)
		}
	}
	if s.Has(1) {
		t.Fatalf("expected Has(1) = false")
	}
}

func TestFieldSetUnionAndIntersects(t *testing.T) {
	a := NewFieldSet(10)
	a.Set(2)
	b := NewFieldSet(10)
	b.Set(2)
	b.Set(5)

	if !a.Intersects(b) {
		t.Fatalf("expected a and b to intersect on field 2")
	}

	u := a.Union(b)
	if !u.Has(2) || !u.Has(5) {
		t.Fatalf("union missing members: %+v", u)
	}
}

func TestFieldSetFromSlice(t *testing.T) {
	s := FieldSetFromSlice(10, []FieldID{1, 3, 9})
	for _, id := range []FieldID{1, 3, 9} {
		if !s.Has(id) {
			t.Fatalf("expected Has(%d) = true", id)
		}
	}
	if s.Has(2) {
		t.Fatalf("expected Has(2) = false")
	}
}
