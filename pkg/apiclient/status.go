package apiclient

import (
	"context"

	"github.com/marmos91/umsd/pkg/api/handlers"
)

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/health", nil)
	return err
}

// Ready reports whether the selected unit has media. A 503 answer is not an
// error: it yields false with the server's reason.
func (c *Client) Ready(ctx context.Context) (bool, string, error) {
	env, err := c.get(ctx, "/health/ready", nil)
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.IsUnavailable() {
			return false, apiErr.Message, nil
		}
		return false, "", err
	}
	return env.Status == handlers.StatusHealthy, "", nil
}

// Status fetches the service status.
func (c *Client) Status(ctx context.Context) (*handlers.Status, error) {
	var st handlers.Status
	if _, err := c.get(ctx, "/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}
