package value

import "testing"

func key(s string) *ObjString {
	return &ObjString{Chars: s, Hash: HashString(s)}
}

func TestTableSetGet(t *testing.T) {
	tbl := NewTable()
	k := key("x")
	if isNew := tbl.Set(k, NumberVal(1)); !isNew {
		t.Fatal("first Set should report a new key")
	}
	v, ok := tbl.Get(k)
	if !ok || v.Number != 1 {
		t.Fatalf("Get(x) = %v, %v", v, ok)
	}
	if isNew := tbl.Set(k, NumberVal(2)); isNew {
		t.Fatal("overwriting an existing key should report isNew=false")
	}
	v, _ = tbl.Get(k)
	if v.Number != 2 {
		t.Fatalf("expected overwritten value 2, got %v", v.Number)
	}
}

func TestTableDeleteThenReinsert(t *testing.T) {
	tbl := NewTable()
	a, b := key("a"), key("b")
	tbl.Set(a, NumberVal(1))
	tbl.Set(b, NumberVal(2))

	if !tbl.Delete(a) {
		t.Fatal("delete of present key should succeed")
	}
	if _, ok := tbl.Get(a); ok {
		t.Fatal("deleted key must not be found")
	}
	// b must still be reachable: the tombstone left by deleting a must not
	// break its probe chain.
	if v, ok := tbl.Get(b); !ok || v.Number != 2 {
		t.Fatalf("Get(b) after deleting a = %v, %v", v, ok)
	}

	tbl.Set(a, NumberVal(3))
	if v, ok := tbl.Get(a); !ok || v.Number != 3 {
		t.Fatalf("reinsert of deleted key failed: %v, %v", v, ok)
	}
}

func TestTableLoadFactorAndGrowth(t *testing.T) {
	tbl := NewTable()
	const n = 200
	keys := make([]*ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = key(string(rune('a' + i%26)) + string(rune(i)))
		tbl.Set(keys[i], NumberVal(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		if !ok || v.Number != float64(i) {
			t.Fatalf("key %d lost after growth: %v, %v", i, v, ok)
		}
	}
	if tbl.count > len(tbl.entries) {
		t.Fatalf("count %d exceeds capacity %d", tbl.count, len(tbl.entries))
	}
}

func TestFindStringByContent(t *testing.T) {
	tbl := NewTable()
	s := key("shared")
	tbl.Set(s, Nil())

	found := tbl.FindString("shared", HashString("shared"))
	if found != s {
		t.Fatal("FindString must return the exact interned object")
	}
	if tbl.FindString("missing", HashString("missing")) != nil {
		t.Fatal("FindString must return nil for an absent key")
	}
}

func TestRemoveWhite(t *testing.T) {
	tbl := NewTable()
	marked := key("marked")
	unmarked := key("unmarked")
	marked.Header().SetMarked(true)
	tbl.Set(marked, Nil())
	tbl.Set(unmarked, Nil())

	tbl.RemoveWhite()

	if _, ok := tbl.Get(marked); !ok {
		t.Fatal("marked (reachable) key must survive RemoveWhite")
	}
	if _, ok := tbl.Get(unmarked); ok {
		t.Fatal("unmarked key must be dropped by RemoveWhite")
	}
}

func TestAddAll(t *testing.T) {
	src := NewTable()
	dst := NewTable()
	m := key("m")
	src.Set(m, NumberVal(1))
	dst.AddAll(src)
	if v, ok := dst.Get(m); !ok || v.Number != 1 {
		t.Fatal("AddAll must copy every live entry")
	}
}
