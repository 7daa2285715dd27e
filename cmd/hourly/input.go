package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/adapter/resstock"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// columns names the time and value columns of a series CSV.
type columns struct {
	time  string
	value string
}

// readSeriesFile reads a series CSV from path, or stdin when path is "-".
func readSeriesFile(path string, cols columns, loc *time.Location) (hourly.Series, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	s, err := readSeriesCSV(r, cols, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// readSeriesCSV reads a headed CSV with a time column and a value column.
// Column names match case-insensitively; an empty value cell is skipped.
func readSeriesCSV(r io.Reader, cols columns, loc *time.Location) (hourly.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv")
		}
		return nil, err
	}
	timeIdx, valueIdx := -1, -1
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		switch {
		case strings.EqualFold(h, cols.time):
			timeIdx = i
		case strings.EqualFold(h, cols.value):
			valueIdx = i
		}
	}
	if timeIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("csv needs columns %q and %q", cols.time, cols.value)
	}

	var points []hourly.Point
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		if timeIdx >= len(rec) || valueIdx >= len(rec) || strings.TrimSpace(rec[valueIdx]) == "" {
			continue
		}
		t, err := domain.ParseReadingTime(strings.TrimSpace(rec[timeIdx]), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value %q: %w", line, rec[valueIdx], err)
		}
		points = append(points, hourly.Point{Time: t, Value: v})
	}
	return hourly.NewSeries(points)
}

// readUsage reads the usage file, summing a ResStock 15-minute load profile
// into hours when resstockLoads is set.
func readUsage(path string, cols columns, resstockLoads bool, loc *time.Location) (hourly.Series, error) {
	s, err := readSeriesFile(path, cols, loc)
	if err != nil {
		return nil, err
	}
	if resstockLoads {
		s = resstock.HourlyLoad(s)
	}
	return s, nil
}

// toReadings renders a series as request readings.
func toReadings(s hourly.Series) []domain.Reading {
	out := make([]domain.Reading, len(s))
	for i, p := range s {
		out[i] = domain.Reading{Time: p.Time.Format(time.RFC3339), Value: p.Value}
	}
	return out
}

// parseHourRange parses "16-20" as the hour range [16, 20).
func parseHourRange(s string) (hourly.HourRange, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return hourly.HourRange{}, fmt.Errorf("hour range %q must look like 16-20", s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return hourly.HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return hourly.HourRange{}, fmt.Errorf("hour range %q: %w", s, err)
	}
	hr := hourly.HourRange{Start: a, End: b}
	return hr, hr.Validate()
}
