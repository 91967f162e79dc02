package support

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Tickets only move forward; CLOSED is the administrative override from
// any state that is not already closed.
var validNext = map[Status]map[Status]bool{
	StatusOpen:       {StatusInProgress: true, StatusClosed: true},
	StatusInProgress: {StatusResolved: true, StatusClosed: true},
	StatusResolved:   {StatusClosed: true},
	StatusClosed:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
