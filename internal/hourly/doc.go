// Package hourly fits hourly baseline energy models and applies them to a
// reporting period.
//
// A fit runs a fixed chain of pure stages over aligned baseline observations:
//
//	SegmentTimeSeries -> EstimateOccupancy -> FitTemperatureBins -> BuildDesignMatrices -> FitSegment
//
// Each stage returns a new value and never mutates the output of an earlier
// one, so a Model can be shared across goroutines. Temperatures are in °F and
// calendar features (hour-of-week, month) are read in each timestamp's own
// location.
package hourly
