package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPayloadBytes caps a single sniffer response. Song details with every
// arrangement and section are well below this.
const maxPayloadBytes = 8 << 20

// HTTPSource polls the sniffer's local HTTP endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the sniffer at host:port.
func NewHTTPSource(host string, port int, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    fmt.Sprintf("http://%s:%d", host, port),
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return "sniffer" }

// URL returns the polled address.
func (s *HTTPSource) URL() string { return s.url }

// Fetch returns the raw body of the latest sniffer response. Every failure
// wraps ErrFetch.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: %d %s", ErrFetch, s.url, resp.StatusCode, string(body))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	return data, nil
}
