package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"BreakoutScreener/internal/model"
)

// newHTTPClient creates an HTTP client with optional proxy support.
func newHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// newLimiter returns nil when rps is not positive, which disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// getJSON performs a rate-limited GET and decodes a 2xx body into out.
// Every failure is returned as *model.ProviderError.
func getJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, endpoint string, header http.Header, op, id string, out interface{}) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &model.ProviderError{Op: op, InstrumentID: id, Err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &model.ProviderError{Op: op, InstrumentID: id, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &model.ProviderError{Op: op, InstrumentID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &model.ProviderError{
			Op:           op,
			InstrumentID: id,
			StatusCode:   resp.StatusCode,
			RateLimited:  resp.StatusCode == http.StatusTooManyRequests,
			Err:          fmt.Errorf("body: %s", string(body)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.ProviderError{Op: op, InstrumentID: id, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
