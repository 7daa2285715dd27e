// Command validate checks fit result fixtures for internal consistency: the
// reported savings and error metrics are recomputed from the hourly rows,
// every hour lies in the reporting window and names a fitted segment, and
// every request in an optional request fixture has exactly one result.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -results data/mock/fit_results.json \
//	  -requests data/mock/fit_requests.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

// tolerance bounds the difference between reported and recomputed metrics.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	resultsPath := flag.String("results", "", "path to the fit result JSON fixture")
	requestsPath := flag.String("requests", "", "optional path to the fit request JSON fixture")
	flag.Parse()

	if *resultsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*resultsPath, *requestsPath); code != 0 {
		os.Exit(code)
	}
}

func run(resultsPath, requestsPath string) int {
	fmt.Println("=== Baseline Result Validation ===")
	fmt.Println()

	results, err := loadJSON[domain.FitResult](resultsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load results: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateShape(results),
		validateMetrics(results),
		validateSegments(results),
	}
	if requestsPath != "" {
		requests, err := loadJSON[domain.FitRequest](requestsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load requests: %v\n", err)
			return 1
		}
		phases = append(phases, validateCoverage(requests, results))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	fmt.Println()
	fmt.Printf("Results: %d total, %d succeeded, %d failed\n", len(results), succeeded, len(results)-succeeded)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

// validateShape checks status fields and the hourly rows of each result.
func validateShape(results []domain.FitResult) *phase {
	p := &phase{name: "Result shape"}
	for _, r := range results {
		id := r.Key()
		switch r.Status {
		case domain.StatusFailed:
			if r.FailureReason == "" {
				p.errorf("%s: failed without a failure reason", id)
			}
			if len(r.Hours) > 0 {
				p.errorf("%s: failed result carries %d hours", id, len(r.Hours))
			}
			continue
		case domain.StatusSucceeded:
		default:
			p.errorf("%s: unknown status %q", id, r.Status)
			continue
		}

		if err := r.HourRange.Validate(); err != nil {
			p.errorf("%s: %v", id, err)
		}
		if !r.BaselineEnd.After(r.BaselineStart) || !r.ReportingEnd.After(r.ReportingStart) {
			p.errorf("%s: empty baseline or reporting window", id)
		}
		if r.BaselineHours <= 0 {
			p.errorf("%s: no baseline hours", id)
		}
		for i, h := range r.Hours {
			if h.Time.Before(r.ReportingStart) || !h.Time.Before(r.ReportingEnd) {
				p.errorf("%s: hour %s outside reporting window", id, h.Time)
			}
			if i > 0 && !h.Time.After(r.Hours[i-1].Time) {
				p.errorf("%s: hour %s out of order", id, h.Time)
			}
			if math.IsNaN(h.Predicted) || math.IsInf(h.Predicted, 0) {
				p.errorf("%s: hour %s has non-finite prediction", id, h.Time)
			}
		}
	}
	return p
}

// validateMetrics recomputes savings over the hour range and MAPE and RMSE
// over every observed hour.
func validateMetrics(results []domain.FitResult) *phase {
	p := &phase{name: "Metric recomputation"}
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		id := r.Key()

		var allPred, allObs, rangePred, rangeObs []float64
		for _, h := range r.Hours {
			if h.Observed == nil {
				continue
			}
			allPred = append(allPred, h.Predicted)
			allObs = append(allObs, *h.Observed)
			if r.HourRange.Contains(h.Time) {
				rangePred = append(rangePred, h.Predicted)
				rangeObs = append(rangeObs, *h.Observed)
			}
		}

		if len(allObs) != r.ObservedHours {
			p.errorf("%s: observed_hours %d, rows have %d", id, r.ObservedHours, len(allObs))
		}
		if len(rangeObs) != r.SavingsHours {
			p.errorf("%s: savings_hours %d, rows have %d", id, r.SavingsHours, len(rangeObs))
		}
		savings, _ := hourly.Savings(rangePred, rangeObs)
		mape, _ := hourly.MAPE(allPred, allObs)
		rmse, _ := hourly.RMSE(allPred, allObs)
		compare(p, id, "savings", r.Savings, savings)
		compare(p, id, "mape", r.MAPE, mape)
		compare(p, id, "rmse", r.RMSE, rmse)

		if r.SavingsUncertainty != nil && *r.SavingsUncertainty < 0 {
			p.errorf("%s: negative savings uncertainty %g", id, *r.SavingsUncertainty)
		}
	}
	return p
}

func compare(p *phase, id, name string, reported, recomputed float64) {
	if math.Abs(reported-recomputed) > tolerance*math.Max(1, math.Abs(recomputed)) {
		p.errorf("%s: %s reported %g, recomputed %g", id, name, reported, recomputed)
	}
}

// validateSegments checks every hour names a fitted segment with a
// coefficient per design column.
func validateSegments(results []domain.FitResult) *phase {
	p := &phase{name: "Segment coverage"}
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		id := r.Key()
		fitted := make(map[string]bool, len(r.Segments))
		for _, s := range r.Segments {
			fitted[s.ID] = true
			if len(s.Columns) != len(s.Coefficients) {
				p.errorf("%s: segment %s has %d columns and %d coefficients", id, s.ID, len(s.Columns), len(s.Coefficients))
			}
		}
		for _, s := range r.SkippedSegments {
			if fitted[s] {
				p.errorf("%s: segment %s is both fitted and skipped", id, s)
			}
		}
		for _, h := range r.Hours {
			if !fitted[h.Segment] {
				p.errorf("%s: hour %s uses unfitted segment %q", id, h.Time, h.Segment)
			}
		}
	}
	return p
}

// validateCoverage checks each request has exactly one result.
func validateCoverage(requests []domain.FitRequest, results []domain.FitResult) *phase {
	p := &phase{name: "Request coverage"}
	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[r.RequestID]++
	}
	for _, req := range requests {
		switch n := counts[req.RequestID]; n {
		case 1:
		case 0:
			p.errorf("%s: no result", req.RequestID)
		default:
			p.errorf("%s: %d results", req.RequestID, n)
		}
		delete(counts, req.RequestID)
	}
	for id := range counts {
		p.errorf("%s: result without a request", id)
	}
	return p
}
