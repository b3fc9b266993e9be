package types

type RideEvent string

func (s RideEvent) String() string {
	return string(s)
}

const (
	EventRideRequested RideEvent = "RIDE_REQUESTED"
	EventRideBooked    RideEvent = "RIDE_BOOKED"
	EventRideStarted   RideEvent = "RIDE_STARTED"
	EventRideCompleted RideEvent = "RIDE_COMPLETED"
	EventRideCancelled RideEvent = "RIDE_CANCELLED"
)

// Broadcast topics
const (
	TopicNewBookings = "new-bookings"
	TopicRidePrefix  = "ride."
)

func RideTopic(rideID string) string {
	return TopicRidePrefix + rideID
}
