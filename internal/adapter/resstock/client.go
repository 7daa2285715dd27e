// Package resstock reads ResStock AMY2018 weather files from the OEDI data
// lake and converts ResStock load profiles to hourly series.
package resstock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// Client implements domain.WeatherSource over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	loc        *time.Location
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a weather client rooted at a ResStock release URL, for
// example config.DefaultWeatherBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	loc, _ := domain.LoadLocation(domain.DefaultTimezone)
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
		metrics: metrics,
		logger:  logger,
	}
}

// WeatherURL returns the location of a county's weather file.
func (c *Client) WeatherURL(state, county string, year int) string {
	return fmt.Sprintf("%s/weather/state=%s/%s_%d.csv", c.baseURL, state, county, year)
}

// HourlyTemperature downloads and parses a county's weather file. Hours are
// start-stamped in Etc/GMT+4 and temperatures are in °F.
func (c *Client) HourlyTemperature(ctx context.Context, state, county string, year int) (hourly.Series, error) {
	u := c.WeatherURL(state, county, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: weather request: %w", domain.ErrWeatherUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s: status %d: %s", domain.ErrWeatherUnavailable, u, resp.StatusCode, body)
	}

	series, err := ParseWeatherCSV(resp.Body, c.loc)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrWeatherUnavailable, u, err)
	}
	if len(series) == 0 {
		c.metrics.WeatherRequests.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: %s has no rows", domain.ErrWeatherUnavailable, u)
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather file loaded", "state", state, "county", county, "year", year, "hours", len(series))
	return series, nil
}
