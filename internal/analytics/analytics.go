// Package analytics composes store aggregates into dashboard snapshots.
//
// The report and API layers consume exactly one snapshot per render so the
// summary, the per-class totals and the recent list are never re-derived
// independently by presentation code.
package analytics

import (
	"context"

	"github.com/tphakala/fruitcount-go/internal/datastore"
	"github.com/tphakala/fruitcount-go/internal/errors"
)

// DefaultRecentLimit is the number of recent requests included in a
// snapshot when the caller does not ask for a specific window.
const DefaultRecentLimit = 10

// Dashboard is one consistent view over the full request history.
type Dashboard struct {
	Summary       datastore.Summary   `json:"summary"`
	CountsByClass map[string]int      `json:"counts_by_class"`
	Recent        []datastore.Request `json:"recent"`
}

// Snapshot reads the three dashboard aggregates from the store. A
// non-positive limit selects DefaultRecentLimit recent requests.
func Snapshot(ctx context.Context, ds datastore.Interface, limit int) (*Dashboard, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	summary, err := ds.Summary(ctx)
	if err != nil {
		return nil, snapshotError(err, "summary")
	}

	totals, err := ds.ClassTotals(ctx)
	if err != nil {
		return nil, snapshotError(err, "class_totals")
	}

	recent, err := ds.GetRecent(ctx, limit)
	if err != nil {
		return nil, snapshotError(err, "recent")
	}

	return &Dashboard{
		Summary:       summary,
		CountsByClass: totals,
		Recent:        recent,
	}, nil
}

func snapshotError(err error, stage string) error {
	return errors.New(err).
		Component("analytics").
		Category(errors.CategoryAggregation).
		Context("operation", "snapshot").
		Context("stage", stage).
		Build()
}
