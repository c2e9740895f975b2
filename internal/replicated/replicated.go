package replicated

// Op says how a change touched its cell.
type Op string

const (
	OpSet     Op = "SET"
	OpAppend  Op = "APPEND"
	OpReplace Op = "REPLACE"
	OpRemove  Op = "REMOVE"
)

// Change is one applied mutation. Cells append a Change to their Sink before
// notifying subscribers, so the sink sees mutations in application order and
// subscribers always run after the change is visible in the cell.
type Change struct {
	Cell      string
	EventType string
	Affected  []string
	Op        Op
	Index     int
	Value     any
}

// Sink collects changes in order. The match owns one and flushes it to client
// queues at the end of each tick; nothing here touches the network.
type Sink interface {
	Record(Change)
}
