// Package source implements the sample source: it fetches the current ISS
// position from the open-notify API with bounded retry.
//
// Transient failures (network errors, non-2xx responses, bad payloads) are
// retried up to MaxRetries attempts with exponential backoff (base 2). When
// all attempts fail the fetch surfaces errors.ErrSourceUnavailable and the
// caller skips that poll cycle.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/config"
	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

var log = logging.Component("source")

// Source yields timestamped position samples or a failure for the cycle.
type Source interface {
	Fetch(ctx context.Context) (telemetry.PositionSample, error)
}

// Options configures the open-notify client.
type Options struct {
	// PositionURL is the position endpoint. Default: config.DefaultPositionURL.
	PositionURL string

	// CrewURL is the people-in-space endpoint. Default: config.DefaultCrewURL.
	CrewURL string

	// Timeout bounds a single HTTP request. Default: config.DefaultFetchTimeout.
	Timeout time.Duration

	// MaxRetries is the number of attempts per fetch. Default: config.DefaultMaxRetries.
	MaxRetries int

	// BackoffBase is the unit for exponential backoff between attempts
	// (base, 2*base, 4*base, ...). Default: 1s.
	BackoffBase time.Duration

	// AltitudeKm is attached to every sample. Default: config.DefaultAltitudeKm.
	AltitudeKm float64

	// Now supplies the fetch_time wall clock. Default: time.Now.
	Now func() time.Time
}

// Stats holds fetch statistics.
type Stats struct {
	Attempts  atomic.Int64
	Successes atomic.Int64
	Retries   atomic.Int64
	Failures  atomic.Int64
}

// Client fetches ISS data from the open-notify API.
type Client struct {
	http *http.Client
	opts Options

	stats Stats
}

// NewClient creates a Client with defaults applied for zero-valued options.
func NewClient(opts Options) *Client {
	if opts.PositionURL == "" {
		opts.PositionURL = config.DefaultPositionURL
	}
	if opts.CrewURL == "" {
		opts.CrewURL = config.DefaultCrewURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultFetchTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = config.DefaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.AltitudeKm == 0 {
		opts.AltitudeKm = config.DefaultAltitudeKm
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		http: &http.Client{Timeout: opts.Timeout},
		opts: opts,
	}
}

// positionResponse is the open-notify iss-now payload. Coordinates arrive
// as strings.
type positionResponse struct {
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
	ISSPosition struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"iss_position"`
}

// Fetch returns the current ISS position, retrying transient failures with
// exponential backoff. The returned error wraps errors.ErrSourceUnavailable
// once all attempts are exhausted.
func (c *Client) Fetch(ctx context.Context) (telemetry.PositionSample, error) {
	var lastErr error

	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			c.stats.Retries.Add(1)
			// 2^(attempt-1) * base: base, 2*base, 4*base, ...
			delay := c.opts.BackoffBase << (attempt - 1)
			if err := sleepCtx(ctx, delay); err != nil {
				return telemetry.PositionSample{}, err
			}
		}

		c.stats.Attempts.Add(1)

		sample, err := c.fetchOnce(ctx)
		if err == nil {
			c.stats.Successes.Add(1)
			return sample, nil
		}
		if ctx.Err() != nil {
			return telemetry.PositionSample{}, ctx.Err()
		}

		lastErr = err
		log.Warn("position fetch failed", "attempt", attempt+1, "max", c.opts.MaxRetries, "error", err)
	}

	c.stats.Failures.Add(1)
	return telemetry.PositionSample{}, errors.Wrapf(errors.ErrSourceUnavailable,
		"after %d attempts: %v", c.opts.MaxRetries, lastErr)
}

// fetchOnce performs a single position request.
func (c *Client) fetchOnce(ctx context.Context) (telemetry.PositionSample, error) {
	body, err := c.get(ctx, c.opts.PositionURL)
	if err != nil {
		return telemetry.PositionSample{}, err
	}

	var resp positionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return telemetry.PositionSample{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Message != "success" {
		return telemetry.PositionSample{}, errors.Wrapf(errors.ErrSourceResponse,
			"message=%q", resp.Message)
	}

	lat, err := strconv.ParseFloat(resp.ISSPosition.Latitude, 64)
	if err != nil {
		return telemetry.PositionSample{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(resp.ISSPosition.Longitude, 64)
	if err != nil {
		return telemetry.PositionSample{}, fmt.Errorf("parse longitude: %w", err)
	}

	sample := telemetry.PositionSample{
		Latitude:   lat,
		Longitude:  lon,
		Timestamp:  resp.Timestamp,
		FetchTime:  c.opts.Now().UTC().Format(time.RFC3339),
		AltitudeKm: c.opts.AltitudeKm,
	}

	if err := sample.Validate(); err != nil {
		return telemetry.PositionSample{}, errors.Wrap(errors.ErrSourceResponse, err.Error())
	}

	return sample, nil
}

// CrewMember is one person currently in space.
type CrewMember struct {
	Name  string `json:"name"`
	Craft string `json:"craft"`
}

// CrewInfo is the people-in-space payload.
type CrewInfo struct {
	Number int          `json:"number"`
	People []CrewMember `json:"people"`
}

// FetchCrew returns the people currently in space. Best-effort, no retry:
// callers treat a failure as missing enrichment, not a pipeline error.
func (c *Client) FetchCrew(ctx context.Context) (CrewInfo, error) {
	body, err := c.get(ctx, c.opts.CrewURL)
	if err != nil {
		return CrewInfo{}, err
	}

	var resp struct {
		Message string       `json:"message"`
		Number  int          `json:"number"`
		People  []CrewMember `json:"people"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return CrewInfo{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Message != "success" {
		return CrewInfo{}, errors.Wrapf(errors.ErrSourceResponse, "message=%q", resp.Message)
	}

	return CrewInfo{Number: resp.Number, People: resp.People}, nil
}

// get performs a GET and returns the body for 2xx responses.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// Stats returns a snapshot of fetch statistics.
func (c *Client) Stats() (attempts, successes, retries, failures int64) {
	return c.stats.Attempts.Load(), c.stats.Successes.Load(),
		c.stats.Retries.Load(), c.stats.Failures.Load()
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
