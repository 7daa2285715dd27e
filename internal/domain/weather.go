package domain

import (
	"context"
	"errors"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// ErrWeatherUnavailable marks a weather lookup that failed or returned nothing.
var ErrWeatherUnavailable = errors.New("weather unavailable")

// WeatherSource provides hourly outdoor dry-bulb temperature in °F for a
// ResStock county, stamped at the start of each hour.
type WeatherSource interface {
	HourlyTemperature(ctx context.Context, state, county string, year int) (hourly.Series, error)
}
