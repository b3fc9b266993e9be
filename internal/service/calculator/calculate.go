package ridecalc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
)

const earthRadiusKm = 6371 // радиус Земли в км

// Policy is the flat-then-per-km tariff.
type Policy struct {
	BaseFare    float64 `json:"first_2km"`
	PerKmRate   float64 `json:"exceeding_2km"`
	ThresholdKm float64 `json:"threshold_km"`
}

func DefaultPolicy() Policy {
	return Policy{BaseFare: 40, PerKmRate: 10, ThresholdKm: 2}
}

type Calculator struct {
	policy Policy
}

func New(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// Fare returns the price for distanceKm rounded to 2 decimals.
// Up to the threshold only the base fare applies.
func (c *Calculator) Fare(distanceKm float64) float64 {
	if distanceKm <= c.policy.ThresholdKm {
		return Round2(c.policy.BaseFare)
	}
	return Round2(c.policy.BaseFare + (distanceKm-c.policy.ThresholdKm)*c.policy.PerKmRate)
}

// Distance is the great-circle distance in km (haversine).
func (c *Calculator) Distance(p1, p2 models.Location) float64 {
	return Haversine(p1.Latitude, p1.Longitude, p2.Latitude, p2.Longitude)
}

func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	// градусы в радианы
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	diffLat := (lat2 - lat1) * math.Pi / 180
	diffLng := (lng2 - lng1) * math.Pi / 180

	a := math.Pow(math.Sin(diffLat/2), 2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Pow(math.Sin(diffLng/2), 2)
	angle := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * angle
}

// MetersToKm converts a routing distance and rounds it to 2 decimals.
func MetersToKm(meters float64) float64 {
	return Round2(meters / 1000)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ValidateCoordinate checks latitude and longitude ranges.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("%w: not a number", types.ErrInvalidCoordinate)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", types.ErrInvalidCoordinate, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", types.ErrInvalidCoordinate, lng)
	}
	return nil
}

// ParseCoordinate parses "lat,lng".
func ParseCoordinate(s string) (models.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Location{}, fmt.Errorf("%w: expected \"lat,lng\", got %q", types.ErrInvalidCoordinate, s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: latitude: %v", types.ErrInvalidCoordinate, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: longitude: %v", types.ErrInvalidCoordinate, err)
	}

	if err := ValidateCoordinate(lat, lng); err != nil {
		return models.Location{}, err
	}
	return models.Location{Latitude: lat, Longitude: lng}, nil
}
