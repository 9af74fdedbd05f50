// internal/datastore/analytics.go
package datastore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/fruitcount-go/internal/errors"
)

// Summary holds store-wide aggregates over the full request history.
type Summary struct {
	TotalRequests int64   `json:"total_requests"`
	TotalFruits   int64   `json:"total_fruits"`
	AvgPerRequest float64 `json:"avg_per_request"`
}

// Summary computes request and fruit totals in a single aggregate query.
// The average is computed here rather than in SQL so an empty history
// yields exactly zero instead of NULL.
func (ds *DataStore) Summary(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	defer func() { ds.recordAnalytics("summary", start, err) }()

	query := `
		SELECT COUNT(*) AS total_requests,
		       COALESCE(SUM(total_count), 0) AS total_fruits
		FROM requests
	`

	if err = ds.DB.WithContext(ctx).Raw(query).Scan(&summary).Error; err != nil {
		return Summary{}, dbError(err, "summary")
	}

	if summary.TotalRequests > 0 {
		summary.AvgPerRequest = float64(summary.TotalFruits) / float64(summary.TotalRequests)
	}
	return summary, nil
}

// ClassTotals sums the per-class counts across the full request history.
// The counts JSON is decoded per record: a record with a malformed counts
// value contributes nothing, is counted in the skip metric and logged, and
// aggregation continues. Classes never observed are absent from the result,
// an empty history yields an empty map.
func (ds *DataStore) ClassTotals(ctx context.Context) (totals map[string]int, err error) {
	start := time.Now()
	defer func() { ds.recordAnalytics("class_totals", start, err) }()

	rows, err := ds.DB.WithContext(ctx).
		Model(&Request{}).
		Select("id, counts").
		Rows()
	if err != nil {
		return nil, dbError(err, "class_totals")
	}
	defer rows.Close()

	totals = make(map[string]int)
	for rows.Next() {
		var id uint
		var raw []byte
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, dbError(err, "class_totals", "stage", "scan")
		}

		// NULL counts mean a record with nothing detected, not corruption
		if len(raw) == 0 {
			continue
		}

		var counts map[string]int
		if decodeErr := json.Unmarshal(raw, &counts); decodeErr != nil {
			ds.skipMalformedCounts(id, decodeErr)
			continue
		}
		for class, count := range counts {
			totals[class] += count
		}
	}
	if err = rows.Err(); err != nil {
		return nil, dbError(err, "class_totals", "stage", "iterate")
	}

	return totals, nil
}

// skipMalformedCounts reports a record whose counts column could not be
// decoded. One bad record never aborts aggregation.
func (ds *DataStore) skipMalformedCounts(id uint, decodeErr error) {
	if ds.metrics != nil {
		ds.metrics.IncrementMalformedCounts()
	}
	enhancedErr := errors.New(decodeErr).
		Component("datastore").
		Category(errors.CategoryAggregation).
		Context("request_id", id).
		Build()
	ds.log.Warn("Skipping request with malformed counts",
		"request_id", id,
		"error", enhancedErr)
}

// recordAnalytics reports outcome and duration of an aggregation query.
func (ds *DataStore) recordAnalytics(analyticsType string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ds.metrics.RecordAnalyticsOperation(analyticsType, status)
	ds.metrics.RecordAnalyticsDuration(analyticsType, time.Since(start).Seconds())
}
