package db

import (
	"sort"
	"strings"
	"time"

	"go-outbreak/types"
)

// AggregateDaily buckets reports by UTC calendar day. Days without reports are absent.
func AggregateDaily(reports []types.SymptomReport) []types.DailyAggregate {
	type bucket struct {
		cases       int
		severitySum int
		count       int
	}
	buckets := make(map[time.Time]*bucket)
	for _, r := range reports {
		day := StartOfDayUTC(r.CreatedAt)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.cases += r.Cases()
		b.severitySum += r.Severity
		b.count++
	}

	out := make([]types.DailyAggregate, 0, len(buckets))
	for day, b := range buckets {
		out = append(out, types.DailyAggregate{
			Date:        day,
			TotalCases:  b.cases,
			AvgSeverity: float64(b.severitySum) / float64(b.count),
			Count:       b.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// FilterReports applies the optional region and disease filters.
func FilterReports(reports []types.SymptomReport, region *types.BoundingBox, disease string) []types.SymptomReport {
	disease = strings.TrimSpace(disease)
	if region == nil && disease == "" {
		return reports
	}
	out := make([]types.SymptomReport, 0, len(reports))
	for _, r := range reports {
		if region != nil && !region.Contains(r.Location) {
			continue
		}
		if !r.HasSymptom(disease) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
