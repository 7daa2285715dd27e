package domain_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

func TestFailedResult_EchoesRequest(t *testing.T) {
	freezeClock(t)
	hr := hourly.HourRange{Start: 16, End: 20}
	req := domain.FitRequest{
		RequestID:   "req-9",
		BuildingID:  "bldg-9",
		Upgrade:     2,
		State:       "NY",
		County:      "G3600610",
		Date:        "2018-07-30",
		SegmentType: "single",
		Features:    "bins",
		HourRange:   &hr,
		Usage:       []domain.Reading{{Time: "2018-07-02T00:00:00", Value: 1}},
	}

	got := domain.FailedResult(req, domain.FailureAlignment, errors.New("no overlap"))
	want := domain.FitResult{
		RequestID:     "req-9",
		BuildingID:    "bldg-9",
		Upgrade:       2,
		State:         "NY",
		County:        "G3600610",
		Date:          "2018-07-30",
		Status:        domain.StatusFailed,
		FailureReason: domain.FailureAlignment,
		Error:         "no overlap",
		SegmentType:   "single",
		Features:      "bins",
		HourRange:     hr,
		ProcessedAt:   processedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FailedResult mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedResult_NilHourRangeIsWholeDay(t *testing.T) {
	freezeClock(t)
	got := domain.FailedResult(domain.FitRequest{RequestID: "r", BuildingID: "b"}, domain.FailureInvalidRequest, nil)
	want := domain.FitResult{
		RequestID:     "r",
		BuildingID:    "b",
		Status:        domain.StatusFailed,
		FailureReason: domain.FailureInvalidRequest,
		HourRange:     hourly.WholeDay,
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(domain.FitResult{}, "ProcessedAt")); diff != "" {
		t.Errorf("FailedResult mismatch (-want +got):\n%s", diff)
	}
}
