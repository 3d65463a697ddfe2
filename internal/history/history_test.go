package history_test

import (
	"testing"

	"github.com/labi-le/clipsync/internal/history"
)

func TestSet_AddOnce(t *testing.T) {
	s := history.NewSet[string](4)

	if !s.Add("clipit") {
		t.Fatal("first Add must report a new key")
	}
	if s.Add("clipit") {
		t.Fatal("second Add must report a known key")
	}
}

func TestSet_Eviction(t *testing.T) {
	const limit = 3
	s := history.NewSet[int](limit)

	for i := 0; i < limit+1; i++ {
		s.Add(i)
	}

	if s.Has(0) {
		t.Fatal("expected the oldest key to be evicted")
	}
	for i := 1; i <= limit; i++ {
		if !s.Has(i) {
			t.Errorf("expected key %d to be present", i)
		}
	}
	if s.Len() != limit {
		t.Fatalf("expected len %d, got %d", limit, s.Len())
	}
}

func TestMap_GetAndReset(t *testing.T) {
	m := history.NewMap[string, int](2)
	m.Add("a", 1)
	m.Add("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	m.Reset()
	if m.Len() != 0 || m.Has("b") {
		t.Fatal("Reset must drop every key")
	}
	if !m.Add("a", 3) {
		t.Fatal("Add after Reset must succeed")
	}
}
