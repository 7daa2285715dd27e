package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wattcarbon/resstock-dashboard/internal/adapter/resstock"
	"github.com/wattcarbon/resstock-dashboard/internal/config"
	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// inputFlags are shared by every subcommand.
type inputFlags struct {
	usage         string
	temperature   string
	timeColumn    string
	valueColumn   string
	resstockLoads bool
	celsius       bool

	state      string
	county     string
	year       int
	weatherURL string

	configPath  string
	buildingID  string
	hours       string
	lookback    int
	segmentType string
	features    string
	occupancy   bool
	logLevel    string

	cmd *cobra.Command
}

func (f *inputFlags) register(cmd *cobra.Command) {
	f.cmd = cmd
	fl := cmd.Flags()
	fl.StringVar(&f.usage, "usage", "", "usage CSV path, - for stdin")
	fl.StringVar(&f.temperature, "temperature", "", "temperature CSV path; omit to download ResStock weather")
	fl.StringVar(&f.timeColumn, "time-column", "time", "name of the time column")
	fl.StringVar(&f.valueColumn, "value-column", "value", "name of the value column")
	fl.BoolVar(&f.resstockLoads, "resstock-loads", false, "usage is a 15-minute ResStock load profile stamped at interval end")
	fl.BoolVar(&f.celsius, "celsius", false, "temperature CSV is in °C")
	fl.StringVar(&f.state, "state", "", "state for ResStock weather, e.g. NY")
	fl.StringVar(&f.county, "county", "", "county GISJOIN for ResStock weather, e.g. G3600610")
	fl.IntVar(&f.year, "year", 2018, "weather year")
	fl.StringVar(&f.weatherURL, "weather-url", config.DefaultWeatherBaseURL, "ResStock release base URL")
	fl.StringVar(&f.configPath, "config", "", "model YAML file")
	fl.StringVar(&f.buildingID, "building-id", "local", "building id echoed in results")
	fl.StringVar(&f.hours, "hours", "", "hour-of-day range for savings and errors, e.g. 16-20")
	fl.IntVar(&f.lookback, "lookback", 0, "baseline days before the reporting day")
	fl.StringVar(&f.segmentType, "segment-type", "", "single or three_month_weighted")
	fl.StringVar(&f.features, "features", "", "bins or caltrack")
	fl.BoolVar(&f.occupancy, "occupancy", false, "split temperature terms by estimated occupancy")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("usage")
}

// session holds the loaded inputs of one command run.
type session struct {
	model       config.Model
	loc         *time.Location
	usage       hourly.Series
	temperature hourly.Series
	analyzer    *domain.Analyzer
	flags       *inputFlags
}

func (f *inputFlags) load(ctx context.Context) (*session, error) {
	model := config.DefaultModel()
	if f.configPath != "" {
		var err error
		if model, err = config.LoadModelFile(f.configPath, model); err != nil {
			return nil, err
		}
	}
	loc, err := domain.LoadLocation(model.Requests.Timezone)
	if err != nil {
		return nil, err
	}

	cols := columns{time: f.timeColumn, value: f.valueColumn}
	usage, err := readUsage(f.usage, cols, f.resstockLoads, loc)
	if err != nil {
		return nil, fmt.Errorf("usage: %w", err)
	}

	logger := observability.NewLoggerTo(os.Stderr, f.logLevel, "text")
	temperature, err := f.loadTemperature(ctx, loc, logger)
	if err != nil {
		return nil, fmt.Errorf("temperature: %w", err)
	}

	return &session{
		model:       model,
		loc:         loc,
		usage:       usage,
		temperature: temperature,
		analyzer:    domain.NewAnalyzer(nil, model.Options, model.Confidence, logger),
		flags:       f,
	}, nil
}

// loadTemperature reads the temperature file in °F, or downloads the county
// weather file when no file is given.
func (f *inputFlags) loadTemperature(ctx context.Context, loc *time.Location, logger *slog.Logger) (hourly.Series, error) {
	if f.temperature != "" {
		s, err := readSeriesFile(f.temperature, columns{time: f.timeColumn, value: f.valueColumn}, loc)
		if err != nil {
			return nil, err
		}
		if f.celsius {
			s = s.Map(hourly.CelsiusToFahrenheit)
		}
		return s, nil
	}
	if f.state == "" || f.county == "" {
		return nil, errors.New("--temperature or --state and --county are required")
	}
	client := resstock.NewClient(f.weatherURL, 2*time.Minute, observability.NewMetricsWithRegistry(prometheus.NewRegistry()), logger)
	s, err := client.HourlyTemperature(ctx, f.state, f.county, f.year)
	if err != nil {
		return nil, err
	}
	return s.In(loc), nil
}

// request builds the fit request for one reporting day.
func (s *session) request(date string) (domain.FitRequest, error) {
	f := s.flags
	req := domain.FitRequest{
		RequestID:       fmt.Sprintf("%s-%s", f.buildingID, date),
		BuildingID:      f.buildingID,
		State:           f.state,
		County:          f.county,
		Year:            f.year,
		Date:            date,
		LookbackDays:    f.lookback,
		SegmentType:     f.segmentType,
		Features:        f.features,
		TemperatureUnit: domain.UnitFahrenheit,
		Usage:           toReadings(s.usage),
		Temperature:     toReadings(s.temperature),
	}
	if f.cmd != nil && f.cmd.Flags().Changed("occupancy") {
		req.IncludeOccupancy = &f.occupancy
	}
	if f.hours != "" {
		hr, err := parseHourRange(f.hours)
		if err != nil {
			return domain.FitRequest{}, err
		}
		req.HourRange = &hr
	}
	return req, nil
}

func (s *session) analyze(ctx context.Context, date string) (domain.FitResult, error) {
	req, err := s.request(date)
	if err != nil {
		return domain.FitResult{}, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return domain.FitResult{}, err
	}
	parsed, err := domain.ParseFitRequest(data, s.model.Requests)
	if err != nil {
		return domain.FitResult{}, err
	}
	return s.analyzer.Analyze(ctx, parsed), nil
}

func predictCmd() *cobra.Command {
	var (
		in     inputFlags
		date   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Fit the baseline before a day and predict that day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := in.load(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.analyze(cmd.Context(), date)
			if err != nil {
				return err
			}
			if err := writeResult(cmd.OutOrStdout(), result, format); err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("%s: %s", result.FailureReason, result.Error)
			}
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&date, "date", "", "reporting day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv or json")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func backtestCmd() *cobra.Command {
	var (
		in       inputFlags
		from, to string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Predict every day in a range and compare against a constant-mean baseline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := in.load(cmd.Context())
			if err != nil {
				return err
			}
			days, err := dayRange(from, to)
			if err != nil {
				return err
			}
			rows := make([]backtestRow, 0, len(days))
			for _, d := range days {
				result, err := s.analyze(cmd.Context(), d)
				if err != nil {
					return err
				}
				rows = append(rows, s.backtestRow(d, result))
			}
			return writeBacktest(cmd.OutOrStdout(), rows, format)
		},
	}
	in.register(cmd)
	cmd.Flags().StringVar(&from, "from", "", "first reporting day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last reporting day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, csv or json")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// dayRange lists the days from first to last inclusive.
func dayRange(first, last string) ([]string, error) {
	a, err := time.Parse("2006-01-02", first)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	b, err := time.Parse("2006-01-02", last)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	if b.Before(a) {
		return nil, errors.New("--to is before --from")
	}
	var days []string
	for d := a; !d.After(b); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days, nil
}
