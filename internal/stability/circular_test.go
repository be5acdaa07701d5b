package stability

import (
	"bytes"
	"encoding/gob"
	"reflect"
	"testing"
)

func TestCircularHistory_DropsOldest(t *testing.T) {
	h := NewCircularHistory(3)
	for i := 1; i <= 5; i++ {
		h.Add(i, i%2 == 0)
	}

	want := []Result{{3, false}, {4, true}, {5, false}}
	if got := h.Results(); !reflect.DeepEqual(got, want) {
		t.Errorf("Results() = %+v, want %+v", got, want)
	}
	if h.Size() != 3 || h.Cap() != 3 {
		t.Errorf("Size()/Cap() = %d/%d, want 3/3", h.Size(), h.Cap())
	}
	last, ok := h.Last()
	if !ok || last.BuildNumber != 5 {
		t.Errorf("Last() = %+v, %v, want build 5", last, ok)
	}
}

func TestCircularHistory_Percentages(t *testing.T) {
	testCases := []struct {
		name      string
		passed    []bool
		failed    int
		stability int
		flakiness int
	}{
		{"empty", nil, 0, 100, 0},
		{"single failure", []bool{false}, 1, 0, 0},
		{"all passed", []bool{true, true, true}, 0, 100, 0},
		{"alternating", []bool{true, false, true, false, true}, 2, 60, 100},
		{"one flip", []bool{true, true, false, false}, 2, 50, 33},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCircularHistory(10)
			for i, p := range tc.passed {
				h.Add(i+1, p)
			}
			if got := h.Failed(); got != tc.failed {
				t.Errorf("Failed() = %d, want %d", got, tc.failed)
			}
			if got := h.Stability(); got != tc.stability {
				t.Errorf("Stability() = %d, want %d", got, tc.stability)
			}
			if got := h.Flakiness(); got != tc.flakiness {
				t.Errorf("Flakiness() = %d, want %d", got, tc.flakiness)
			}
		})
	}
}

func TestCircularHistory_IsMostRecentRegressed(t *testing.T) {
	h := NewCircularHistory(5)
	h.Add(1, true)
	if h.IsMostRecentRegressed() {
		t.Error("IsMostRecentRegressed() = true with a single result")
	}
	h.Add(2, false)
	if !h.IsMostRecentRegressed() {
		t.Error("IsMostRecentRegressed() = false after pass then fail")
	}
	h.Add(3, false)
	if h.IsMostRecentRegressed() {
		t.Error("IsMostRecentRegressed() = true after two failures")
	}
	if h.AllPassed() {
		t.Error("AllPassed() = true for a history with failures")
	}
}

func TestDescription(t *testing.T) {
	h := NewCircularHistory(10)
	h.Add(1, true)
	h.Add(2, true)
	if got := Description(h); got != "No known failures. Flakiness 0%, Stability 100%" {
		t.Errorf("Description() = %q", got)
	}

	h.Add(3, false)
	h.Add(4, true)
	want := "Failed 1 times in the last 4 runs. Flakiness: 66%, Stability: 75%"
	if got := Description(h); got != want {
		t.Errorf("Description() = %q, want %q", got, want)
	}
}

func TestCircularHistory_TextEncoding(t *testing.T) {
	h := NewCircularHistory(3)
	h.Add(7, true)
	h.Add(8, false)
	h.Add(9, true)
	h.Add(10, false)

	text, err := h.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "3:8;0,9;1,10;0" {
		t.Errorf("MarshalText() = %q", text)
	}

	var decoded CircularHistory
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if !reflect.DeepEqual(decoded.Results(), h.Results()) || decoded.Cap() != 3 {
		t.Errorf("decoded = %+v (cap %d), want %+v", decoded.Results(), decoded.Cap(), h.Results())
	}

	for _, bad := range []string{"", "x:1;1", "3:1;2", "3:a;1", "3:1"} {
		if err := decoded.UnmarshalText([]byte(bad)); err == nil {
			t.Errorf("UnmarshalText(%q) expected error, got nil", bad)
		}
	}
}

func TestCircularHistory_Gob(t *testing.T) {
	type wrapper struct {
		Name    string
		Results *CircularHistory
	}
	h := NewCircularHistory(4)
	h.Add(1, false)
	h.Add(2, true)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wrapper{Name: "t", Results: h}); err != nil {
		t.Fatalf("gob encode error = %v", err)
	}
	var out wrapper
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatalf("gob decode error = %v", err)
	}
	if out.Results == nil || !reflect.DeepEqual(out.Results.Results(), h.Results()) {
		t.Errorf("gob round trip lost results: %+v", out.Results)
	}
}

func TestChildSelection(t *testing.T) {
	steady := NewCircularHistory(5)
	steady.AddAll([]Result{{1, true}, {2, true}, {3, false}})
	flaky := NewCircularHistory(5)
	flaky.AddAll([]Result{{1, true}, {2, false}, {3, true}})

	lookup := map[string]*TestHistory{
		"suite/a": {Name: "a", Results: steady},
		"suite/b": {Name: "b", Results: flaky},
	}
	parent := &TestHistory{Name: "suite", Children: []string{"suite/a", "suite/b", "suite/missing"}}

	id, flakiness, ok := FlakiestChild(parent, lookup)
	if !ok || id != "suite/b" || flakiness != 100 {
		t.Errorf("FlakiestChild() = %q, %d, %v", id, flakiness, ok)
	}
	id, stability, ok := LeastStableChild(parent, lookup)
	if !ok || id != "suite/a" || stability != 66 {
		t.Errorf("LeastStableChild() = %q, %d, %v", id, stability, ok)
	}

	if _, _, ok := FlakiestChild(&TestHistory{}, lookup); ok {
		t.Error("FlakiestChild() ok = true for a history without children")
	}
}

func TestCircularHistory_Resize(t *testing.T) {
	h := NewCircularHistory(4)
	for b := 1; b <= 4; b++ {
		h.Add(b, b%2 == 0)
	}

	h.Resize(2)
	if h.Cap() != 2 || h.Size() != 2 {
		t.Fatalf("after Resize(2): cap %d size %d, want 2 and 2", h.Cap(), h.Size())
	}
	if got := h.Results(); got[0].BuildNumber != 3 || got[1].BuildNumber != 4 {
		t.Errorf("Resize(2) kept %v, want builds 3 and 4", got)
	}

	h.Resize(5)
	h.Add(5, true)
	if h.Cap() != 5 || h.Size() != 3 {
		t.Errorf("after Resize(5) and Add: cap %d size %d, want 5 and 3", h.Cap(), h.Size())
	}
	if last, _ := h.Last(); last.BuildNumber != 5 {
		t.Errorf("Last() = %+v, want build 5", last)
	}
}
