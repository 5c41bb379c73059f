package session

// EventType classifies what the poll loop reports to observers.
type EventType int

const (
	EventCycle EventType = iota // a relevant cycle completed
	EventReset                  // session state was discarded
)

func (t EventType) String() string {
	switch t {
	case EventCycle:
		return "cycle"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event carries the outcome of one cycle to observers.
type Event struct {
	Type     EventType
	View     View
	Changed  []Var     // vars whose value differs from the last publish
	Commands []Command // commands dispatched this cycle, in order
}
