// Package jcdecaux provides access to the JCDecaux VLS API.
package jcdecaux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rewired-gh/velofeed/internal/models"
)

// ErrUpstreamUnavailable marks transport errors, timeouts, non-2xx responses
// and undecodable bodies from the provider.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

const (
	DefaultBaseURL   = "https://api.jcdecaux.com/vls/v1"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "jcdecaux-gbfs/v1"
)

// ClientConfig holds identification and connection pooling settings.
type ClientConfig struct {
	UserAgent           string
	AbuseContact        string
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the JCDecaux contracts and stations endpoints.
// One Client keeps its connections alive across calls.
type Client struct {
	baseURL      string
	apiKey       string
	userAgent    string
	abuseContact string
	httpClient   *http.Client
}

// NewClient creates a new JCDecaux client.
func NewClient(baseURL, apiKey string, timeout time.Duration, cfg ClientConfig) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		return nil, errors.New("api key must not be empty")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AbuseContact == "" {
		return nil, errors.New("abuse contact must not be empty")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	transport.IdleConnTimeout = cfg.IdleConnTimeout
	transport.DisableKeepAlives = false

	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		userAgent:    cfg.UserAgent,
		abuseContact: cfg.AbuseContact,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// ListCities retrieves every contract known to the provider, unmodified.
func (c *Client) ListCities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	if err := c.getJSON(ctx, "/contracts", nil, &cities); err != nil {
		return nil, fmt.Errorf("failed to fetch contracts: %w", err)
	}
	return cities, nil
}

// ListStations retrieves the live station list of one contract, ordered by
// station number. Nothing is cached.
func (c *Client) ListStations(ctx context.Context, contract string) ([]models.Station, error) {
	q := url.Values{}
	q.Set("contract", contract)

	var stations []models.Station
	if err := c.getJSON(ctx, "/stations", q, &stations); err != nil {
		return nil, fmt.Errorf("failed to fetch stations for %s: %w", contract, err)
	}
	models.SortStations(stations)
	return stations, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Abuse-Contact", c.abuseContact)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection goes back to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("%w: unexpected status %s", ErrUpstreamUnavailable, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}
