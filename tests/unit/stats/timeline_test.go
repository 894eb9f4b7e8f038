package stats_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/splitkit/splitkit/internal/stats"
	"github.com/splitkit/splitkit/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTimeline_EntryCount(t *testing.T) {
	// 7 days back through today inclusive: always 8 entries, data or not.
	timeline := stats.Timeline(nil, 7)
	if len(timeline) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(timeline))
	}
	for _, e := range timeline {
		if e.Visitors != 0 || e.Conversions != 0 {
			t.Errorf("expected zero-filled entry, got %+v", e)
		}
	}
}

func TestTimelineRange_SumsAcrossVariants(t *testing.T) {
	end := day(2024, 3, 10)
	input := []store.VariantCounts{
		{
			VariantID: "control",
			Daily: []store.DailyCount{
				{Date: day(2024, 3, 8), Visitors: 10, Conversions: 1},
				{Date: day(2024, 3, 10), Visitors: 20, Conversions: 2},
			},
		},
		{
			VariantID: "treatment",
			Daily: []store.DailyCount{
				{Date: day(2024, 3, 8), Visitors: 5, Conversions: 2},
			},
		},
	}

	timeline := stats.TimelineRange(input, 2, end)
	want := []stats.TimelineEntry{
		{Date: "2024-03-08", Visitors: 15, Conversions: 3},
		{Date: "2024-03-09", Visitors: 0, Conversions: 0},
		{Date: "2024-03-10", Visitors: 20, Conversions: 2},
	}
	if !reflect.DeepEqual(timeline, want) {
		t.Errorf("timeline mismatch:\n got %+v\nwant %+v", timeline, want)
	}
}

func TestTimelineRange_DataOutsideRangeIgnored(t *testing.T) {
	end := day(2024, 3, 10)
	input := []store.VariantCounts{
		{
			VariantID: "control",
			Daily: []store.DailyCount{
				{Date: day(2024, 2, 1), Visitors: 100, Conversions: 10},
			},
		},
	}

	for _, e := range stats.TimelineRange(input, 3, end) {
		if e.Visitors != 0 {
			t.Errorf("day %s picked up out-of-range data", e.Date)
		}
	}
}

func TestTimelineRange_ZeroDays(t *testing.T) {
	timeline := stats.TimelineRange(nil, 0, day(2024, 3, 10))
	if len(timeline) != 1 {
		t.Fatalf("expected a single entry for rangeDays=0, got %d", len(timeline))
	}
	if timeline[0].Date != "2024-03-10" {
		t.Errorf("expected the end day itself, got %s", timeline[0].Date)
	}
}

func TestTimelineRange_Idempotent(t *testing.T) {
	end := day(2024, 3, 10)
	input := []store.VariantCounts{
		{
			VariantID: "control",
			Daily: []store.DailyCount{
				{Date: day(2024, 3, 9), Visitors: 7, Conversions: 1},
			},
		},
	}

	first := stats.TimelineRange(input, 7, end)
	second := stats.TimelineRange(input, 7, end)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input did not produce identical output")
	}
}
