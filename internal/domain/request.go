package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// ErrInvalidRequest marks a request that fails validation.
var ErrInvalidRequest = errors.New("invalid fit request")

// DefaultTimezone is the fixed zone ResStock series are recorded in.
const DefaultTimezone = "Etc/GMT+4"

const dateLayout = "2006-01-02"

// Temperature units accepted in requests.
const (
	UnitCelsius    = "C"
	UnitFahrenheit = "F"
)

var (
	stateRe  = regexp.MustCompile(`^[A-Z]{2}$`)
	countyRe = regexp.MustCompile(`^G\d{7}$`)
	etcGMTRe = regexp.MustCompile(`^Etc/GMT([+-])(\d{1,2})$`)
)

// Reading is one hourly value. Time is RFC 3339; a value without an offset is
// wall-clock time in the request timezone.
type Reading struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// WindowRequest is an explicit [start, end) range in the request timezone.
type WindowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FitRequest asks for a baseline fit of one building around one day.
type FitRequest struct {
	RequestID  string `json:"request_id"`
	BuildingID string `json:"building_id"`
	Upgrade    int    `json:"upgrade"`
	State      string `json:"state"`
	County     string `json:"county,omitempty"`
	Year       int    `json:"year,omitempty"`

	// Date selects the reporting day; the baseline is the LookbackDays
	// before it. Baseline and Reporting override both windows.
	Date         string         `json:"date"`
	Timezone     string         `json:"timezone,omitempty"`
	LookbackDays int            `json:"lookback_days,omitempty"`
	Baseline     *WindowRequest `json:"baseline,omitempty"`
	Reporting    *WindowRequest `json:"reporting,omitempty"`

	HourRange        *hourly.HourRange `json:"hour_range,omitempty"`
	SegmentType      string            `json:"segment_type,omitempty"`
	Features         string            `json:"features,omitempty"`
	IncludeOccupancy *bool             `json:"include_occupancy,omitempty"`
	IsElectricity    *bool             `json:"is_electricity,omitempty"`
	TemperatureUnit  string            `json:"temperature_unit,omitempty"`

	Usage       []Reading `json:"usage"`
	Temperature []Reading `json:"temperature,omitempty"`
}

// RequestDefaults fills the optional request fields.
type RequestDefaults struct {
	Timezone         string
	LookbackDays     int
	SegmentType      hourly.SegmentType
	Features         hourly.FeatureSet
	IncludeOccupancy bool
	IsElectricity    bool
	HourRange        hourly.HourRange
	WeatherYear      int
}

// DefaultRequestDefaults matches the dashboard's single-segment,
// no-occupancy electricity model.
func DefaultRequestDefaults() RequestDefaults {
	return RequestDefaults{
		Timezone:      DefaultTimezone,
		LookbackDays:  hourly.DefaultLookbackDays,
		SegmentType:   hourly.SegmentSingle,
		Features:      hourly.FeatureBins,
		IsElectricity: true,
		HourRange:     hourly.WholeDay,
		WeatherYear:   2018,
	}
}

// ParseFitRequest decodes a request, applies defaults and validates it.
// A request that decodes but fails validation is returned together with an
// ErrInvalidRequest error so callers can still answer it.
func ParseFitRequest(data []byte, defaults RequestDefaults) (FitRequest, error) {
	var req FitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return FitRequest{}, fmt.Errorf("parse fit request: %w", err)
	}
	req = req.withDefaults(defaults)
	return req, req.Validate()
}

func (r FitRequest) withDefaults(d RequestDefaults) FitRequest {
	if r.Timezone == "" {
		r.Timezone = d.Timezone
	}
	if r.LookbackDays == 0 {
		r.LookbackDays = d.LookbackDays
	}
	if r.SegmentType == "" {
		r.SegmentType = string(d.SegmentType)
	}
	if r.Features == "" {
		r.Features = string(d.Features)
	}
	if r.IncludeOccupancy == nil {
		v := d.IncludeOccupancy
		r.IncludeOccupancy = &v
	}
	if r.IsElectricity == nil {
		v := d.IsElectricity
		r.IsElectricity = &v
	}
	if r.HourRange == nil {
		hr := d.HourRange
		r.HourRange = &hr
	}
	if r.TemperatureUnit == "" {
		r.TemperatureUnit = UnitFahrenheit
	}
	if r.Year == 0 {
		r.Year = d.WeatherYear
	}
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.County = strings.ToUpper(strings.TrimSpace(r.County))
	return r
}

func (r FitRequest) occupancy() bool { return r.IncludeOccupancy != nil && *r.IncludeOccupancy }

func (r FitRequest) electricity() bool { return r.IsElectricity == nil || *r.IsElectricity }

func (r FitRequest) hourRange() hourly.HourRange {
	if r.HourRange == nil {
		return hourly.WholeDay
	}
	return *r.HourRange
}

// Validate checks the request for values the analyzer cannot work with.
func (r FitRequest) Validate() error {
	var problems []string
	if r.RequestID == "" {
		problems = append(problems, "request_id is required")
	}
	if r.BuildingID == "" {
		problems = append(problems, "building_id is required")
	}
	if r.Upgrade < 0 {
		problems = append(problems, "upgrade must not be negative")
	}
	if _, err := LoadLocation(r.Timezone); err != nil {
		problems = append(problems, err.Error())
	}
	if r.Baseline == nil && r.Reporting == nil {
		if _, err := time.Parse(dateLayout, r.Date); err != nil {
			problems = append(problems, fmt.Sprintf("date %q is not YYYY-MM-DD", r.Date))
		}
		if r.LookbackDays < 1 {
			problems = append(problems, "lookback_days must be positive")
		}
	} else if r.Baseline == nil || r.Reporting == nil {
		problems = append(problems, "baseline and reporting windows must be given together")
	}
	if r.HourRange != nil {
		if err := r.HourRange.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if _, err := hourly.ParseSegmentType(r.SegmentType); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := hourly.ParseFeatureSet(r.Features); err != nil {
		problems = append(problems, err.Error())
	}
	if r.TemperatureUnit != UnitCelsius && r.TemperatureUnit != UnitFahrenheit {
		problems = append(problems, fmt.Sprintf("temperature_unit %q must be C or F", r.TemperatureUnit))
	}
	if len(r.Usage) == 0 {
		problems = append(problems, "usage is required")
	}
	if len(r.Temperature) == 0 {
		if !stateRe.MatchString(r.State) || !countyRe.MatchString(r.County) {
			problems = append(problems, "state and county are required when temperature is omitted")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// LoadLocation resolves an IANA zone name. Etc/GMT offsets resolve without
// the zone database; their sign is inverted, so Etc/GMT+4 is UTC-4.
func LoadLocation(name string) (*time.Location, error) {
	if m := etcGMTRe.FindStringSubmatch(name); m != nil {
		hours, _ := strconv.Atoi(m[2])
		if hours > 14 {
			return nil, fmt.Errorf("timezone %q out of range", name)
		}
		offset := hours * 3600
		if m[1] == "+" {
			offset = -offset
		}
		return time.FixedZone(name, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseReadingTime parses an RFC 3339 time, or a zone-less
// "2006-01-02T15:04:05" / "2006-01-02 15:04:05" time in loc.
func ParseReadingTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("reading time %q is not RFC 3339", s)
}

// readingSeries converts readings into an hourly series in loc, applying
// convert to every value when non-nil.
func readingSeries(readings []Reading, loc *time.Location, convert func(float64) float64) (hourly.Series, error) {
	points := make([]hourly.Point, len(readings))
	for i, r := range readings {
		t, err := ParseReadingTime(r.Time, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		v := r.Value
		if convert != nil {
			v = convert(v)
		}
		points[i] = hourly.Point{Time: t, Value: v}
	}
	s, err := hourly.NewSeries(points)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s, nil
}

// windows resolves the request's baseline and reporting windows in loc.
func (r FitRequest) windows(loc *time.Location) (hourly.WindowSpec, error) {
	if r.Baseline != nil && r.Reporting != nil {
		baseline, err := parseWindow(*r.Baseline, loc)
		if err != nil {
			return hourly.WindowSpec{}, err
		}
		reporting, err := parseWindow(*r.Reporting, loc)
		if err != nil {
			return hourly.WindowSpec{}, err
		}
		return hourly.CustomWindows(baseline, reporting)
	}
	day, err := time.ParseInLocation(dateLayout, r.Date, loc)
	if err != nil {
		return hourly.WindowSpec{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return hourly.DayWindows(day, r.LookbackDays)
}

func parseWindow(w WindowRequest, loc *time.Location) (hourly.Window, error) {
	start, err := ParseReadingTime(w.Start, loc)
	if err != nil {
		return hourly.Window{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	end, err := ParseReadingTime(w.End, loc)
	if err != nil {
		return hourly.Window{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return hourly.Window{Start: start, End: end}, nil
}
