package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// Model holds the model options and the request defaults they imply.
type Model struct {
	Options    hourly.Options
	Requests   domain.RequestDefaults
	Confidence float64
}

// DefaultModel matches the dashboard: single segment, bins, no occupancy.
func DefaultModel() Model {
	return Model{
		Options:    hourly.DefaultOptions(),
		Requests:   domain.DefaultRequestDefaults(),
		Confidence: hourly.DefaultConfidence,
	}
}

// modelFile is the YAML layout of MODEL_CONFIG_FILE.
type modelFile struct {
	Model            hourly.Options   `yaml:"model"`
	Timezone         string           `yaml:"timezone"`
	LookbackDays     int              `yaml:"lookback_days"`
	IncludeOccupancy bool             `yaml:"include_occupancy"`
	IsElectricity    bool             `yaml:"is_electricity"`
	HourRange        hourly.HourRange `yaml:"hour_range"`
	WeatherYear      int              `yaml:"weather_year"`
	Confidence       float64          `yaml:"confidence"`
}

// LoadModel builds the model configuration: defaults, then MODEL_CONFIG_FILE
// when set, then the MODEL_* environment overrides.
func LoadModel() (Model, error) {
	m := DefaultModel()
	if path := os.Getenv("MODEL_CONFIG_FILE"); path != "" {
		var err error
		if m, err = LoadModelFile(path, m); err != nil {
			return Model{}, err
		}
	}
	if err := applyModelEnv(&m); err != nil {
		return Model{}, err
	}
	return m, m.Validate()
}

// LoadModelFile overlays the YAML file at path on base. Keys absent from the
// file keep their base values; unknown keys are rejected.
func LoadModelFile(path string, base Model) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read model config: %w", err)
	}

	f := modelFile{
		Model:            base.Options,
		Timezone:         base.Requests.Timezone,
		LookbackDays:     base.Requests.LookbackDays,
		IncludeOccupancy: base.Requests.IncludeOccupancy,
		IsElectricity:    base.Requests.IsElectricity,
		HourRange:        base.Requests.HourRange,
		WeatherYear:      base.Requests.WeatherYear,
		Confidence:       base.Confidence,
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Model{}, fmt.Errorf("parse model config %s: %w", path, err)
	}

	m := Model{
		Options: f.Model,
		Requests: domain.RequestDefaults{
			Timezone:         f.Timezone,
			LookbackDays:     f.LookbackDays,
			SegmentType:      f.Model.SegmentType,
			Features:         f.Model.Features,
			IncludeOccupancy: f.IncludeOccupancy,
			IsElectricity:    f.IsElectricity,
			HourRange:        f.HourRange,
			WeatherYear:      f.WeatherYear,
		},
		Confidence: f.Confidence,
	}
	return m, m.Validate()
}

func applyModelEnv(m *Model) error {
	if v := os.Getenv("MODEL_SEGMENT_TYPE"); v != "" {
		st, err := hourly.ParseSegmentType(v)
		if err != nil {
			return fmt.Errorf("invalid MODEL_SEGMENT_TYPE: %w", err)
		}
		m.Options.SegmentType = st
	}
	if v := os.Getenv("MODEL_FEATURES"); v != "" {
		fs, err := hourly.ParseFeatureSet(v)
		if err != nil {
			return fmt.Errorf("invalid MODEL_FEATURES: %w", err)
		}
		m.Options.Features = fs
	}
	if v := os.Getenv("MODEL_INCLUDE_OCCUPANCY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MODEL_INCLUDE_OCCUPANCY %q", v)
		}
		m.Requests.IncludeOccupancy = b
	}
	if v := os.Getenv("MODEL_LOOKBACK_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid MODEL_LOOKBACK_DAYS %q", v)
		}
		m.Requests.LookbackDays = n
	}
	if v := os.Getenv("MODEL_MIN_BASELINE_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid MODEL_MIN_BASELINE_HOURS %q", v)
		}
		m.Options.MinBaselineHours = n
	}
	if v := os.Getenv("MODEL_CONFIDENCE"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MODEL_CONFIDENCE %q", v)
		}
		m.Confidence = c
	}
	m.Requests.Timezone = sharedcfg.EnvOrDefault("MODEL_TIMEZONE", m.Requests.Timezone)
	m.Requests.SegmentType = m.Options.SegmentType
	m.Requests.Features = m.Options.Features
	return nil
}

// Validate checks the model options and request defaults.
func (m Model) Validate() error {
	if err := m.Options.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	if m.Confidence <= 0 || m.Confidence >= 1 {
		return fmt.Errorf("model config: confidence %v outside (0, 1)", m.Confidence)
	}
	if m.Requests.LookbackDays < 1 {
		return errors.New("model config: lookback_days must be positive")
	}
	if err := m.Requests.HourRange.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	if _, err := domain.LoadLocation(m.Requests.Timezone); err != nil {
		return fmt.Errorf("model config: %w", err)
	}
	return nil
}
