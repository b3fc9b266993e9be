package types

type RideStatus string

func (s RideStatus) String() string {
	return string(s)
}

const (
	StatusAvailable RideStatus = "Available"
	StatusBooked    RideStatus = "Booked"
	StatusInTransit RideStatus = "In Transit"
	StatusCompleted RideStatus = "Completed"
	StatusCancelled RideStatus = "Cancelled"
)

// NonTerminalStatuses are the statuses that still count as an active ride.
var NonTerminalStatuses = []RideStatus{StatusAvailable, StatusBooked, StatusInTransit}

// IsTerminal reports whether no further transitions are possible.
func (s RideStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HasRider reports whether a ride in this status must carry an assigned rider.
func (s RideStatus) HasRider() bool {
	return s == StatusBooked || s == StatusInTransit || s == StatusCompleted
}

// RideAction is a command that moves a ride between statuses.
type RideAction string

const (
	ActionAssign   RideAction = "assign"
	ActionStart    RideAction = "start"
	ActionComplete RideAction = "complete"
	ActionCancel   RideAction = "cancel"
)

var transitions = map[RideStatus]map[RideAction]RideStatus{
	StatusAvailable: {
		ActionAssign: StatusBooked,
		ActionCancel: StatusCancelled,
	},
	StatusBooked: {
		ActionStart:  StatusInTransit,
		ActionCancel: StatusCancelled,
	},
	StatusInTransit: {
		ActionComplete: StatusCompleted,
	},
}

// NextStatus returns the status reached by applying action to from.
// ok is false when the pair is not part of the lifecycle.
func NextStatus(from RideStatus, action RideAction) (RideStatus, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// EventFor returns the event emitted when a ride enters status to.
func EventFor(to RideStatus) RideEvent {
	switch to {
	case StatusAvailable:
		return EventRideRequested
	case StatusBooked:
		return EventRideBooked
	case StatusInTransit:
		return EventRideStarted
	case StatusCompleted:
		return EventRideCompleted
	case StatusCancelled:
		return EventRideCancelled
	}
	return ""
}

type ApplicationStatus string

func (s ApplicationStatus) String() string {
	return string(s)
}

const (
	ApplicationPending    ApplicationStatus = "Pending"
	ApplicationAccepted   ApplicationStatus = "Accepted"
	ApplicationRejected   ApplicationStatus = "Rejected"
	ApplicationSuperseded ApplicationStatus = "Superseded"
)
