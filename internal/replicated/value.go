package replicated

import "fmt"

// Value is a single replicated cell. All access happens on the match goroutine;
// there is no locking here on purpose.
type Value[T any] struct {
	cell      string
	eventType string
	affected  []string
	sink      Sink

	val       T
	subs      []*valueSub[T]
	notifying bool
}

type valueSub[T any] struct {
	fn func(old, new T)
}

// NewValue creates the cell holding initial. Construction is not a Set: nothing
// is recorded and nobody is notified.
func NewValue[T any](sink Sink, cell, eventType string, affected []string, initial T) *Value[T] {
	return &Value[T]{
		cell:      cell,
		eventType: eventType,
		affected:  affected,
		sink:      sink,
		val:       initial,
	}
}

func (v *Value[T]) Get() T { return v.val }

// Set stores the new value, records one change, then runs subscribers in
// registration order. Every Set produces exactly one change and one round of
// notifications; callers that want edge semantics compare before calling.
// Setting the same cell again from inside one of its own subscribers panics.
func (v *Value[T]) Set(val T) {
	if v.notifying {
		panic(fmt.Sprintf("replicated: re-entrant Set on %s", v.cell))
	}
	old := v.val
	v.val = val
	v.sink.Record(Change{
		Cell:      v.cell,
		EventType: v.eventType,
		Affected:  v.affected,
		Op:        OpSet,
		Value:     val,
	})
	subs := v.subs
	v.notifying = true
	defer func() { v.notifying = false }()
	for _, s := range subs {
		s.fn(old, val)
	}
}

// Subscribe registers fn to run synchronously after each Set. The returned
// cancel removes the subscription; cancelling from inside a notification is
// safe (removal copies, so an in-flight round keeps its view).
func (v *Value[T]) Subscribe(fn func(old, new T)) (cancel func()) {
	s := &valueSub[T]{fn: fn}
	v.subs = append(v.subs, s)
	return func() {
		for i, x := range v.subs {
			if x == s {
				v.subs = append(v.subs[:i:i], v.subs[i+1:]...)
				return
			}
		}
	}
}
