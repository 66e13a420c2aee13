package supervisor

import (
	"context"
	"net/http"
)

// httpProbe treats a 200 from the base URL as evidence the server finished
// binding its port.
type httpProbe struct {
	client *http.Client
}

// NewHTTPProbe returns the Probe backed by a plain GET against the base URL.
func NewHTTPProbe() Probe {
	return httpProbe{client: &http.Client{}}
}

func (p httpProbe) Ready(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
