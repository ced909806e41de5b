package jsonfield

import "sort"

type slot struct {
	value    any
	consumed bool
}

// ValueStack is the working set of a composite value during encoding. Keys are
// popped at most once; updates replace a live slot in place and append
// consumed or new keys at the end.
type ValueStack struct {
	order []string
	slots map[string]*slot
}

// NewValueStack builds a stack from data in ascending key order.
func NewValueStack(data map[string]any) *ValueStack {
	s := &ValueStack{slots: make(map[string]*slot, len(data))}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.order = append(s.order, k)
		s.slots[k] = &slot{value: data[k]}
	}
	return s
}

// Pop consumes key. It returns ErrItemNotFound when the key was never supplied
// or was already popped.
func (s *ValueStack) Pop(key string) (Pair, error) {
	sl, ok := s.slots[key]
	if !ok || sl.consumed {
		return Pair{}, ErrItemNotFound
	}
	sl.consumed = true
	return Pair{Key: key, Value: sl.value, Exists: true}, nil
}

// Update sets key to v, creating the slot when needed.
func (s *ValueStack) Update(key string, v any) {
	sl, ok := s.slots[key]
	switch {
	case !ok:
		s.slots[key] = &slot{value: v}
		s.order = append(s.order, key)
	case sl.consumed:
		s.moveToEnd(key)
		sl.value, sl.consumed = v, false
	default:
		sl.value = v
	}
}

func (s *ValueStack) moveToEnd(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, key)
}

// Keys returns the live keys in stack order.
func (s *ValueStack) Keys() []string {
	out := make([]string, 0, len(s.order))
	for _, k := range s.order {
		if !s.slots[k].consumed {
			out = append(out, k)
		}
	}
	return out
}

// Flatten returns the live slots as a plain map.
func (s *ValueStack) Flatten() map[string]any {
	out := make(map[string]any, len(s.order))
	for _, k := range s.Keys() {
		out[k] = s.slots[k].value
	}
	return out
}
