package locationIQ

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
)

type addressPayload struct {
	Address string `json:"display_name"`
}

// GetAddress reverse geocodes a coordinate into a display address.
func (c *Client) GetAddress(ctx context.Context, loc models.Location) (string, error) {
	const op = "LocationIQClient.GetAddress"

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("lat", fmt.Sprintf("%f", loc.Latitude))
	q.Set("lon", fmt.Sprintf("%f", loc.Longitude))
	q.Set("format", "json")

	var payload addressPayload
	if err := c.get(ctx, op, c.baseURL+"/v1/reverse?"+q.Encode(), &payload); err != nil {
		return "", err
	}
	return payload.Address, nil
}
