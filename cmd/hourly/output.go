package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

func writeResult(w io.Writer, r domain.FitResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		return writeResultCSV(w, r)
	case "table":
		return writeResultTable(w, r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeResultCSV(w io.Writer, r domain.FitResult) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"time", "temperature", "observed", "predicted", "segment", "occupied", "extrapolated"})
	for _, h := range r.Hours {
		observed := ""
		if h.Observed != nil {
			observed = formatFloat(*h.Observed)
		}
		_ = cw.Write([]string{
			h.Time.Format(time.RFC3339),
			formatFloat(h.Temperature),
			observed,
			formatFloat(h.Predicted),
			h.Segment,
			strconv.FormatBool(h.Occupied),
			strconv.FormatBool(h.Extrapolated),
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeResultTable(w io.Writer, r domain.FitResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if !r.Succeeded() {
		fmt.Fprintf(tw, "building\t%s\n", r.BuildingID)
		fmt.Fprintf(tw, "status\t%s (%s)\n", r.Status, r.FailureReason)
		fmt.Fprintf(tw, "error\t%s\n", r.Error)
		return tw.Flush()
	}
	fmt.Fprintf(tw, "building\t%s\n", r.BuildingID)
	fmt.Fprintf(tw, "model\t%s / %s\n", r.SegmentType, r.Features)
	fmt.Fprintf(tw, "baseline\t%s to %s (%d hours)\n", r.BaselineStart.Format(time.DateTime), r.BaselineEnd.Format(time.DateTime), r.BaselineHours)
	fmt.Fprintf(tw, "hours\t%d-%d\n", r.HourRange.Start, r.HourRange.End)
	fmt.Fprintf(tw, "savings\t%.3f kWh over %d hours\n", r.Savings, r.SavingsHours)
	if r.SavingsUncertainty != nil {
		fmt.Fprintf(tw, "uncertainty\t±%.3f kWh\n", *r.SavingsUncertainty)
	}
	fmt.Fprintf(tw, "mape\t%.2f%%\n", r.MAPE)
	fmt.Fprintf(tw, "rmse\t%.3f kWh\n", r.RMSE)
	if len(r.SkippedSegments) > 0 {
		fmt.Fprintf(tw, "skipped\t%v\n", r.SkippedSegments)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "time\ttemp °F\tobserved\tpredicted\tsegment")
	for _, h := range r.Hours {
		observed := "-"
		if h.Observed != nil {
			observed = fmt.Sprintf("%.3f", *h.Observed)
		}
		marker := ""
		if h.Extrapolated {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.3f%s\t%s\n", h.Time.Format("2006-01-02 15:04"), h.Temperature, observed, h.Predicted, marker, h.Segment)
	}
	return tw.Flush()
}

// backtestRow is one reporting day of a backtest. The naive columns score a
// constant prediction equal to the mean baseline usage over the same
// observed hours as MAPE and RMSE.
type backtestRow struct {
	Date          string               `json:"date"`
	Status        string               `json:"status"`
	FailureReason domain.FailureReason `json:"failure_reason,omitempty"`
	Hours         int                  `json:"hours"`
	Savings       float64              `json:"savings"`
	MAPE          float64              `json:"mape"`
	RMSE          float64              `json:"rmse"`
	NaiveMAPE     float64              `json:"naive_mape"`
	NaiveRMSE     float64              `json:"naive_rmse"`
}

func (s *session) backtestRow(date string, r domain.FitResult) backtestRow {
	row := backtestRow{Date: date, Status: r.Status, FailureReason: r.FailureReason}
	if !r.Succeeded() {
		return row
	}
	row.Hours = r.SavingsHours
	row.Savings, row.MAPE, row.RMSE = r.Savings, r.MAPE, r.RMSE

	mean := meanOf(s.usage.Between(r.BaselineStart, r.BaselineEnd))
	var predicted, observed []float64
	for _, h := range r.Hours {
		if h.Observed == nil {
			continue
		}
		predicted = append(predicted, mean)
		observed = append(observed, *h.Observed)
	}
	row.NaiveMAPE, _ = hourly.MAPE(predicted, observed)
	row.NaiveRMSE, _ = hourly.RMSE(predicted, observed)
	return row
}

func meanOf(s hourly.Series) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, p := range s {
		sum += p.Value
	}
	return sum / float64(len(s))
}

// backtestSummary averages the succeeded rows.
type backtestSummary struct {
	Days      int     `json:"days"`
	Succeeded int     `json:"succeeded"`
	MAPE      float64 `json:"mean_mape"`
	RMSE      float64 `json:"mean_rmse"`
	NaiveMAPE float64 `json:"mean_naive_mape"`
	NaiveRMSE float64 `json:"mean_naive_rmse"`
	Savings   float64 `json:"total_savings"`
}

func summarize(rows []backtestRow) backtestSummary {
	sum := backtestSummary{Days: len(rows)}
	for _, r := range rows {
		if r.Status != domain.StatusSucceeded {
			continue
		}
		sum.Succeeded++
		sum.MAPE += r.MAPE
		sum.RMSE += r.RMSE
		sum.NaiveMAPE += r.NaiveMAPE
		sum.NaiveRMSE += r.NaiveRMSE
		sum.Savings += r.Savings
	}
	if sum.Succeeded > 0 {
		n := float64(sum.Succeeded)
		sum.MAPE /= n
		sum.RMSE /= n
		sum.NaiveMAPE /= n
		sum.NaiveRMSE /= n
	}
	return sum
}

func writeBacktest(w io.Writer, rows []backtestRow, format string) error {
	summary := summarize(rows)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Days    []backtestRow   `json:"days"`
			Summary backtestSummary `json:"summary"`
		}{rows, summary})
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"date", "status", "failure_reason", "hours", "savings", "mape", "rmse", "naive_mape", "naive_rmse"})
		for _, r := range rows {
			_ = cw.Write([]string{
				r.Date, r.Status, string(r.FailureReason), strconv.Itoa(r.Hours),
				formatFloat(r.Savings), formatFloat(r.MAPE), formatFloat(r.RMSE),
				formatFloat(r.NaiveMAPE), formatFloat(r.NaiveRMSE),
			})
		}
		cw.Flush()
		return cw.Error()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "date\tstatus\tsavings\tmape\trmse\tnaive mape\tnaive rmse")
		for _, r := range rows {
			if r.Status != domain.StatusSucceeded {
				fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\n", r.Date, r.FailureReason)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.2f%%\t%.3f\t%.2f%%\t%.3f\n", r.Date, r.Status, r.Savings, r.MAPE, r.RMSE, r.NaiveMAPE, r.NaiveRMSE)
		}
		fmt.Fprintf(tw, "mean (%d/%d)\t\t%.3f\t%.2f%%\t%.3f\t%.2f%%\t%.3f\n",
			summary.Succeeded, summary.Days, summary.Savings, summary.MAPE, summary.RMSE, summary.NaiveMAPE, summary.NaiveRMSE)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
