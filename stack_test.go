package jsonfield_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/reoring/jsonfield"
)

func TestValueStack_PopOnce(t *testing.T) {
	s := jsonfield.NewValueStack(map[string]any{"b": 2, "a": 1})

	kv, err := s.Pop("a")
	if err != nil || kv.Key != "a" || kv.Value != 1 || !kv.Exists {
		t.Fatalf("unexpected pop result %+v %v", kv, err)
	}
	if _, err := s.Pop("a"); !errors.Is(err, jsonfield.ErrItemNotFound) {
		t.Fatalf("second pop must signal not found, got %v", err)
	}
	if _, err := s.Pop("missing"); !errors.Is(err, jsonfield.ErrItemNotFound) {
		t.Fatalf("missing key must signal not found, got %v", err)
	}
	if got := s.Flatten(); !reflect.DeepEqual(got, map[string]any{"b": 2}) {
		t.Fatalf("popped keys must leave the result: %v", got)
	}
}

func TestValueStack_UpdateOrder(t *testing.T) {
	s := jsonfield.NewValueStack(map[string]any{"c": 3, "a": 1, "b": 2})
	if got := s.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("initial order %v", got)
	}

	_, _ = s.Pop("a")
	s.Update("a", 10) // consumed key moves to the end
	s.Update("b", 20) // live key keeps its slot
	s.Update("d", 4)  // new key is appended

	if got := s.Keys(); !reflect.DeepEqual(got, []string{"b", "c", "a", "d"}) {
		t.Fatalf("order after updates %v", got)
	}
	want := map[string]any{"a": 10, "b": 20, "c": 3, "d": 4}
	if got := s.Flatten(); !reflect.DeepEqual(got, want) {
		t.Fatalf("flatten = %v, want %v", got, want)
	}
	if _, err := s.Pop("a"); err != nil {
		t.Fatalf("updated key must be poppable again: %v", err)
	}
}

func TestValueStack_Empty(t *testing.T) {
	s := jsonfield.NewValueStack(nil)
	if len(s.Keys()) != 0 || len(s.Flatten()) != 0 {
		t.Fatalf("expected empty stack")
	}
}
