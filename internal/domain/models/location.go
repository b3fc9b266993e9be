package models

import (
	"time"

	"github.com/google/uuid"
)

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Address   string  `json:"address,omitempty"`
}

type FareSource string

const (
	FareSourceRouting   FareSource = "routing"
	FareSourceHaversine FareSource = "haversine"
)

// FareQuote is the computed distance and price between two points
type FareQuote struct {
	DistanceKm float64    `json:"distance_km"`
	Fare       float64    `json:"fare"`
	Source     FareSource `json:"source"`
}

// RiderLocationSample is the last reported position of a rider. Last write wins.
type RiderLocationSample struct {
	RiderID    uuid.UUID `json:"rider_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	CapturedAt time.Time `json:"captured_at"`
}

// NearbyRider is a sample annotated with its distance from the query point
type NearbyRider struct {
	RiderLocationSample
	DistanceKm float64 `json:"distance_km"`
}
