// Command genmock generates synthetic fit request fixtures and the results
// the service produces for them. It runs the real domain analyzer so the
// expected results match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -requests-out data/mock/fit_requests.json \
//	  -results-out data/mock/fit_results.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly/hourlytest"
)

// building describes one generated fixture.
type building struct {
	id        string
	county    string
	seed      uint64
	peak      float64
	hours     *hourly.HourRange
	occupancy bool
	celsius   bool
	lookback  int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	requestsOut := flag.String("requests-out", "", "output path for the fit request fixture")
	resultsOut := flag.String("results-out", "", "output path for the expected fit results")
	date := flag.String("date", "2018-07-30", "reporting day")
	flag.Parse()

	if *requestsOut == "" || *resultsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -requests-out, -results-out")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		return fmt.Errorf("parse -date: %w", err)
	}

	peak := hourly.HourRange{Start: 16, End: 20}
	buildings := []building{
		{id: "100001", county: "G3600610", seed: 1},
		{id: "100002", county: "G3600610", seed: 2, peak: 0.8, hours: &peak},
		{id: "100003", county: "G3600470", seed: 3, peak: 1.2, occupancy: true},
		{id: "100004", county: "G3600470", seed: 4, celsius: true},
		// Three baseline days is below the one-week minimum.
		{id: "100005", county: "G3600810", seed: 5, lookback: 3},
	}

	analyzer := domain.NewAnalyzer(nil, hourly.DefaultOptions(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defaults := domain.DefaultRequestDefaults()

	requests := make([]domain.FitRequest, 0, len(buildings))
	results := make([]domain.FitResult, 0, len(buildings))
	for _, b := range buildings {
		req, err := fixtureRequest(b, day)
		if err != nil {
			return fmt.Errorf("building %s: %w", b.id, err)
		}
		requests = append(requests, req)

		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		parsed, err := domain.ParseFitRequest(data, defaults)
		if err != nil {
			return fmt.Errorf("building %s: %w", b.id, err)
		}
		result := analyzer.Analyze(context.Background(), parsed)
		results = append(results, result)
		log.Printf("%s: %s %s", b.id, result.Status, result.FailureReason)
	}

	if err := writeJSON(*requestsOut, requests); err != nil {
		return fmt.Errorf("writing request fixture: %w", err)
	}
	log.Printf("wrote request fixture: %s", *requestsOut)

	if err := writeJSON(*resultsOut, results); err != nil {
		return fmt.Errorf("writing result fixture: %w", err)
	}
	log.Printf("wrote result fixture: %s", *resultsOut)
	return nil
}

func fixtureRequest(b building, day time.Time) (domain.FitRequest, error) {
	loc, err := domain.LoadLocation(domain.DefaultTimezone)
	if err != nil {
		return domain.FitRequest{}, err
	}
	lookback := hourly.DefaultLookbackDays
	if b.lookback > 0 {
		lookback = b.lookback
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -lookback)

	profile := hourlytest.Summer(start, lookback+1, b.seed)
	if b.peak > 0 {
		profile.Schedule = hourlytest.EveningPeak(b.peak)
	}
	usage, temperature := hourlytest.Generate(profile)

	unit := domain.UnitFahrenheit
	if b.celsius {
		unit = domain.UnitCelsius
		temperature = temperature.Map(func(f float64) float64 { return (f - 32) * 5 / 9 })
	}

	occupancy := b.occupancy
	return domain.FitRequest{
		RequestID:        "mock-" + b.id,
		BuildingID:       b.id,
		State:            "NY",
		County:           b.county,
		Date:             day.Format("2006-01-02"),
		LookbackDays:     lookback,
		HourRange:        b.hours,
		IncludeOccupancy: &occupancy,
		TemperatureUnit:  unit,
		Usage:            readings(usage),
		Temperature:      readings(temperature),
	}, nil
}

func readings(s hourly.Series) []domain.Reading {
	out := make([]domain.Reading, len(s))
	for i, p := range s {
		out[i] = domain.Reading{Time: p.Time.Format(time.RFC3339), Value: p.Value}
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
