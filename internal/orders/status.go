package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Delivered and cancelled are terminal: nothing moves out of them, and a
// delivered order cannot be cancelled anymore.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func Terminal(s Status) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}
