package value

import "testing"

func TestFalsey(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil(), true},
		{BoolVal(false), true},
		{BoolVal(true), false},
		{NumberVal(0), false},
		{NumberVal(1), false},
	}
	for _, c := range cases {
		if got := c.v.IsFalsey(); got != c.want {
			t.Errorf("IsFalsey(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal(Nil(), Nil()) {
		t.Error("nil should equal nil")
	}
	if !Equal(BoolVal(true), BoolVal(true)) {
		t.Error("true should equal true")
	}
	if Equal(BoolVal(true), BoolVal(false)) {
		t.Error("true should not equal false")
	}
	if !Equal(NumberVal(1), NumberVal(1)) {
		t.Error("1 should equal 1")
	}
	nan := NumberVal(nan())
	if Equal(nan, nan) {
		t.Error("NaN should never equal NaN")
	}

	s1 := &ObjString{Chars: "abc"}
	s2 := &ObjString{Chars: "abc"}
	if Equal(ObjVal(s1), ObjVal(s2)) {
		t.Error("distinct (non-interned) string objects must not compare equal")
	}
	if !Equal(ObjVal(s1), ObjVal(s1)) {
		t.Error("a string object must equal itself")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestFormatNumberDropsTrailingZero(t *testing.T) {
	cases := map[float64]string{
		3:    "3",
		3.5:  "3.5",
		-2:   "-2",
		0:    "0",
		1e20: "100000000000000000000",
	}
	for n, want := range cases {
		if got := FormatNumber(n); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", n, got, want)
		}
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hashing the same bytes must be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("distinct strings colliding is improbable for this fixture")
	}
}
