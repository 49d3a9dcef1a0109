package fallback

import (
	"reflect"
	"testing"
)

func TestMapKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewMap[int]()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("c", 3)
	m.Set("b", 4)

	if got, want := m.Keys(), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if v, ok := m.Get("b"); !ok || v != 4 {
		t.Fatalf("Get(b) = %v, %v, want 4, true", v, ok)
	}
}

func TestMapDelete(t *testing.T) {
	t.Parallel()

	m := NewMap[string]()
	m.Set("x", "1")
	m.Set("y", "2")

	if !m.Delete("x") {
		t.Fatalf("Delete(x) = false, want true")
	}
	if m.Delete("x") {
		t.Fatalf("second Delete(x) = true, want false")
	}
	if _, ok := m.Get("x"); ok {
		t.Fatalf("Get(x) found a deleted key")
	}
	if got, want := m.Keys(), []string{"y"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}
