package locationIQ

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
)

const defaultBaseURL = "https://us1.locationiq.com"

// Client talks to LocationIQ. The directions endpoint follows the OSRM response format,
// so any OSRM-compatible base URL works as well.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, op, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w: failed to make request to LocationIQ: %v", op, types.ErrUpstreamUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ctx = wrap.WithAction(ctx, types.ActionExternalServiceFailed)
		return wrap.Error(ctx, fmt.Errorf("%s: %w: unexpected response status %d", op, types.ErrUpstreamUnavailable, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: failed to decode LocationIQ response: %w", op, err))
	}
	return nil
}
