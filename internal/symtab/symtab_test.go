package symtab

import "testing"

func TestAddLocalAccumulatesOffsets(t *testing.T) {
	fn := NewFunction()
	a := fn.AddLocal("a", 1, false) // char, 1 byte
	b := fn.AddLocal("b", 2, true)  // pointer, 2 bytes
	c := fn.AddLocal("c", 1, false)

	if a.Offset != 0 {
		t.Errorf("a.Offset = %d, want 0", a.Offset)
	}
	if b.Offset != 1 {
		t.Errorf("b.Offset = %d, want 1", b.Offset)
	}
	if c.Offset != 3 {
		t.Errorf("c.Offset = %d, want 3", c.Offset)
	}
	if fn.LocalsSize() != 4 {
		t.Errorf("LocalsSize() = %d, want 4", fn.LocalsSize())
	}
}

func TestAddParamOffsetsStartAtFour(t *testing.T) {
	fn := NewFunction()
	p0 := fn.AddParam("a", 0, false, 0)
	p1 := fn.AddParam("b", 1, false, 0)
	p2 := fn.AddParam("c", 2, true, 0)

	if p0.Offset != 4 || p1.Offset != 6 || p2.Offset != 8 {
		t.Errorf("got offsets %d, %d, %d; want 4, 6, 8", p0.Offset, p1.Offset, p2.Offset)
	}
}

func TestAddParamOffsetsShiftPastLocalsFrame(t *testing.T) {
	fn := NewFunction()
	fn.AddLocal("x", 1, false)
	fn.AddLocal("y", 2, true)
	base := fn.LocalsSize() // 3

	p0 := fn.AddParam("a", 0, false, base)
	if p0.Offset != 7 {
		t.Errorf("p0.Offset = %d, want 7 (base 3 + 4)", p0.Offset)
	}
}

func TestLookupOrderLocalBeatsParamBeatsGlobal(t *testing.T) {
	globals := NewGlobals()
	globals.Add("x", false)

	fn := NewFunction()
	fn.AddParam("x", 0, true, 0)

	res := Lookup(fn, globals, "x")
	if res.Kind != ResolutionParam {
		t.Fatalf("Kind = %v, want ResolutionParam (param shadows global)", res.Kind)
	}

	fn.AddLocal("x", 1, false)
	res = Lookup(fn, globals, "x")
	if res.Kind != ResolutionLocal {
		t.Fatalf("Kind = %v, want ResolutionLocal (local shadows param)", res.Kind)
	}
}

func TestLookupFallsThroughToGlobal(t *testing.T) {
	globals := NewGlobals()
	globals.Add("counter", false)

	fn := NewFunction()
	res := Lookup(fn, globals, "counter")
	if res.Kind != ResolutionGlobal {
		t.Fatalf("Kind = %v, want ResolutionGlobal", res.Kind)
	}
}

func TestLookupMiss(t *testing.T) {
	res := Lookup(NewFunction(), NewGlobals(), "nope")
	if res.Kind != ResolutionNone {
		t.Fatalf("Kind = %v, want ResolutionNone", res.Kind)
	}
}

func TestLocalsOrderPreserved(t *testing.T) {
	fn := NewFunction()
	fn.AddLocal("a", 1, false)
	fn.AddLocal("b", 1, false)
	fn.AddLocal("c", 1, false)

	locals := fn.Locals()
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if locals[i].Name != w {
			t.Errorf("locals[%d].Name = %q, want %q", i, locals[i].Name, w)
		}
	}
}
