package types

type ServiceMode string

// Ride Service - ride lifecycle, matching, applications and real-time broadcasting
// Location Service - consumes rider location samples and keeps the geo index fresh
const (
	RideService     ServiceMode = "ride-service"
	LocationService ServiceMode = "location-service"
)

// Enum для типа поездки
type RideType string

func (t RideType) String() string {
	return string(t)
}

const (
	MotorTaxi RideType = "Motor Taxi"
	Pakyaw    RideType = "Pakyaw"
	Delivery  RideType = "Delivery"
)

var RideTypes = []string{MotorTaxi.String(), Pakyaw.String(), Delivery.String()}

// Enum для роли пользователя
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	CustomerRole UserRole = "CUSTOMER"
	RiderRole    UserRole = "RIDER"
)

func (r UserRole) Valid() bool {
	return r == CustomerRole || r == RiderRole
}
