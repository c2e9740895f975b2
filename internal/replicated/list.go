package replicated

import "fmt"

// List is an ordered replicated collection. Changes are index-scoped so a
// mirror can apply them without diffing.
type List[T any] struct {
	cell      string
	eventType string
	affected  []string
	sink      Sink

	items     []T
	subs      []*listSub[T]
	notifying bool
}

// ListChange is the subscriber's view of one list mutation. Value is the zero
// T for removes.
type ListChange[T any] struct {
	Op    Op
	Index int
	Value T
}

type listSub[T any] struct {
	fn func(ListChange[T])
}

func NewList[T any](sink Sink, cell, eventType string, affected []string) *List[T] {
	return &List[T]{
		cell:      cell,
		eventType: eventType,
		affected:  affected,
		sink:      sink,
	}
}

// NewListOf creates the list holding initial. Like NewValue, construction is
// not a mutation: nothing is recorded and nobody is notified.
func NewListOf[T any](sink Sink, cell, eventType string, affected []string, initial []T) *List[T] {
	l := NewList[T](sink, cell, eventType, affected)
	l.items = append(l.items, initial...)
	return l
}

func (l *List[T]) Len() int      { return len(l.items) }
func (l *List[T]) Get(i int) T   { return l.items[i] }
func (l *List[T]) Snapshot() []T { return append([]T(nil), l.items...) }

func (l *List[T]) Append(val T) {
	l.items = append(l.items, val)
	l.record(ListChange[T]{Op: OpAppend, Index: len(l.items) - 1, Value: val})
}

func (l *List[T]) ReplaceAt(i int, val T) {
	l.items[i] = val
	l.record(ListChange[T]{Op: OpReplace, Index: i, Value: val})
}

func (l *List[T]) RemoveAt(i int) {
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	var zero T
	l.record(ListChange[T]{Op: OpRemove, Index: i, Value: zero})
}

func (l *List[T]) record(c ListChange[T]) {
	if l.notifying {
		panic(fmt.Sprintf("replicated: re-entrant mutation on %s", l.cell))
	}
	var val any
	if c.Op != OpRemove {
		val = c.Value
	}
	l.sink.Record(Change{
		Cell:      l.cell,
		EventType: l.eventType,
		Affected:  l.affected,
		Op:        c.Op,
		Index:     c.Index,
		Value:     val,
	})
	subs := l.subs
	l.notifying = true
	defer func() { l.notifying = false }()
	for _, s := range subs {
		s.fn(c)
	}
}

func (l *List[T]) Subscribe(fn func(ListChange[T])) (cancel func()) {
	s := &listSub[T]{fn: fn}
	l.subs = append(l.subs, s)
	return func() {
		for i, x := range l.subs {
			if x == s {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}
