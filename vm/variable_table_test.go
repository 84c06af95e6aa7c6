package vm

import (
	"fmt"
	"sync"
	"testing"
)

func TestVarTableEmpty(t *testing.T) {
	var vt VarTable
	if _, ok := vt.Get("@a"); ok {
		t.Error("Get on empty table should miss")
	}
	if vt.Size() != 0 || vt.Capacity() != 0 {
		t.Errorf("empty table Size=%d Capacity=%d, want 0 0", vt.Size(), vt.Capacity())
	}
	if _, ok := vt.Remove("@a"); ok {
		t.Error("Remove on empty table should report false")
	}
}

func TestVarTablePutGetRemove(t *testing.T) {
	var vt VarTable
	a, b := &Object{}, &Object{}

	vt.Put("@a", a)
	if got, ok := vt.Get("@a"); !ok || got != Value(a) {
		t.Fatalf("Get(@a) = %v, %v; want a, true", got, ok)
	}

	vt.Put("@a", b)
	if got, _ := vt.Get("@a"); got != Value(b) {
		t.Error("Put should overwrite an existing name")
	}
	if vt.Size() != 1 {
		t.Errorf("Size after overwrite = %d, want 1", vt.Size())
	}

	got, ok := vt.Remove("@a")
	if !ok || got != Value(b) {
		t.Errorf("Remove(@a) = %v, %v; want b, true", got, ok)
	}
	if vt.Contains("@a") {
		t.Error("name still present after Remove")
	}
	if vt.Size() != 0 {
		t.Errorf("Size after Remove = %d, want 0", vt.Size())
	}
}

func TestVarTableEqualNamesWithDistinctStorage(t *testing.T) {
	var vt VarTable
	o := &Object{}
	vt.Put("@name", o)

	// Built at runtime so it does not share storage with the literal.
	other := string([]byte("@name"))
	if got, ok := vt.Get(other); !ok || got != Value(o) {
		t.Error("lookup by an equal but separately allocated string should hit")
	}
}

func TestVarTableGrowth(t *testing.T) {
	var vt VarTable
	vals := make(map[string]*Object)

	resizes, lastCap := 0, 0
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("@v%d", i)
		o := &Object{}
		vals[name] = o
		vt.Put(name, o)
		if c := vt.Capacity(); c != lastCap {
			if lastCap != 0 {
				resizes++
			}
			lastCap = c
		}
	}

	if vt.Size() != 1000 {
		t.Fatalf("Size = %d, want 1000", vt.Size())
	}
	if resizes < 3 {
		t.Errorf("resizes = %d, want at least 3", resizes)
	}
	if vt.Capacity() != 2048 {
		t.Errorf("Capacity = %d, want 2048", vt.Capacity())
	}
	for name, o := range vals {
		got, ok := vt.Get(name)
		if !ok || got != Value(o) {
			t.Fatalf("Get(%s) lost its value after growth", name)
		}
	}
	if n := len(vt.Entries()); n != 1000 {
		t.Errorf("len(Entries) = %d, want 1000", n)
	}
}

func TestVarTableRemoveMiddleOfChain(t *testing.T) {
	var vt VarTable
	names := make([]string, 64)
	for i := range names {
		names[i] = fmt.Sprintf("@x%d", i)
		vt.Put(names[i], &Object{})
	}
	for i := 0; i < len(names); i += 2 {
		if _, ok := vt.Remove(names[i]); !ok {
			t.Fatalf("Remove(%s) missed", names[i])
		}
	}
	for i, name := range names {
		if got := vt.Contains(name); got != (i%2 == 1) {
			t.Errorf("Contains(%s) = %v after removing evens", name, got)
		}
	}
	if vt.Size() != 32 {
		t.Errorf("Size = %d, want 32", vt.Size())
	}
}

func TestVarTableConcurrentReadersAndWriters(t *testing.T) {
	var vt VarTable
	stable := &Object{}
	vt.Put("@stable", stable)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				name := fmt.Sprintf("@w%d_%d", w, i)
				vt.Put(name, &Object{})
				if i%3 == 0 {
					vt.Remove(name)
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				if got, ok := vt.Get("@stable"); !ok || got != Value(stable) {
					t.Error("reader lost @stable during concurrent writes")
					return
				}
			}
		}()
	}
	wg.Wait()

	// 4 writers x 500 puts, minus the 167 removed by each.
	if want := 1 + 4*(500-167); vt.Size() != want {
		t.Errorf("Size = %d, want %d", vt.Size(), want)
	}
}
