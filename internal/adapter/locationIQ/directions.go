package locationIQ

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/internal/domain/types"
)

type directionsPayload struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Legs     []struct {
			Distance float64 `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

// DrivingDistance returns the driving distance in meters as the sum of the first route's legs.
func (c *Client) DrivingDistance(ctx context.Context, from, to models.Location) (float64, error) {
	const op = "LocationIQClient.DrivingDistance"

	q := url.Values{}
	q.Set("overview", "false")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	// OSRM order is lng,lat
	u := fmt.Sprintf("%s/v1/directions/driving/%.6f,%.6f;%.6f,%.6f?%s",
		c.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude, q.Encode())

	var payload directionsPayload
	if err := c.get(ctx, op, u, &payload); err != nil {
		return 0, err
	}

	if payload.Code != "" && payload.Code != "Ok" {
		return 0, fmt.Errorf("%s: %w: routing code %q", op, types.ErrUpstreamUnavailable, payload.Code)
	}
	if len(payload.Routes) == 0 {
		return 0, fmt.Errorf("%s: %w: no route found", op, types.ErrUpstreamUnavailable)
	}

	route := payload.Routes[0]
	if len(route.Legs) == 0 {
		return route.Distance, nil
	}

	var meters float64
	for _, leg := range route.Legs {
		meters += leg.Distance
	}
	return meters, nil
}
