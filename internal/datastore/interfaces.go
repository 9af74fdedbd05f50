// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/fruitcount-go/internal/conf"
	"github.com/tphakala/fruitcount-go/internal/errors"
	"github.com/tphakala/fruitcount-go/internal/observability/metrics"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DefaultRecentLimit is used when GetRecent is called with a non-positive limit.
	DefaultRecentLimit = 10

	// DefaultSearchLimit is the page size used when a search filter does not set one.
	DefaultSearchLimit = 100

	// MaxSearchLimit caps the page size a search filter may request.
	MaxSearchLimit = 1000
)

// Interface abstracts the underlying database implementation and defines
// the operations of the request store. Records are append-only: there are
// no update or delete operations.
type Interface interface {
	Open() error
	Close() error
	Save(ctx context.Context, request *Request) error
	GetRequest(ctx context.Context, id uint) (Request, error)
	GetRecent(ctx context.Context, limit int) ([]Request, error)
	GetAllRequests(ctx context.Context) ([]Request, error)
	SearchRequests(ctx context.Context, filters *SearchFilters) ([]Request, error)
	CountRequests(ctx context.Context, filters *SearchFilters) (int64, error)
	Summary(ctx context.Context) (Summary, error)
	ClassTotals(ctx context.Context) (map[string]int, error)
}

// SearchFilters narrows and paginates request history queries.
type SearchFilters struct {
	ModelName string // filter to requests processed by this model, empty for all
	Limit     int    // page size, clamped to MaxSearchLimit
	Offset    int    // rows to skip
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
	log     *slog.Logger
}

// New creates a request store backed by the database selected in the
// output settings. Returns nil when no database output is enabled.
func New(settings *conf.Settings, dbMetrics *metrics.DatastoreMetrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{metrics: dbMetrics, log: getLoggerSafe()},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{metrics: dbMetrics, log: getLoggerSafe()},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// createGormLogger configures and returns a new GORM logger instance.
func (ds *DataStore) createGormLogger() gormlogger.Interface {
	return NewGormLogger(DefaultSlowQueryThreshold, gormlogger.Warn, ds.metrics)
}

// recordOperation reports outcome and duration of a store operation.
// Missing records are counted separately from genuine failures.
func (ds *DataStore) recordOperation(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.IsCategory(err, errors.CategoryNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	ds.metrics.RecordRequestOperation(operation, status)
	ds.metrics.RecordRequestOperationDuration(operation, time.Since(start).Seconds())
}

// validateRequest checks the record invariants before insertion. The counts
// map may only carry positive values and their sum must equal TotalCount.
func validateRequest(request *Request) error {
	if request == nil {
		return validationError("request is nil", "request", nil)
	}
	if request.ProcessingMs < 0 {
		return validationError("processing time is negative", "processing_ms", request.ProcessingMs)
	}

	counts, err := request.CountsAsInts()
	if err != nil {
		return err
	}
	sum := 0
	for class, count := range counts {
		if count <= 0 {
			return validationError("counts value is not positive", class, count)
		}
		sum += count
	}
	if sum != request.TotalCount {
		return validationError("total_count does not match sum of counts", "total_count", request.TotalCount)
	}
	return nil
}

// Save stores a request record as a single transaction in the database.
// GORM assigns the id on insert; concurrent saves each receive a distinct,
// strictly increasing id.
func (ds *DataStore) Save(ctx context.Context, request *Request) (err error) {
	start := time.Now()
	defer func() { ds.recordOperation("save", start, err) }()

	if err = validateRequest(request); err != nil {
		return err
	}

	tx := ds.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return dbError(tx.Error, "save", "stage", "begin")
	}

	// Roll back the transaction if a panic occurs
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err = tx.Create(request).Error; err != nil {
		tx.Rollback()
		return dbError(err, "save", "stage", "create")
	}

	if err = tx.Commit().Error; err != nil {
		return dbError(err, "save", "stage", "commit")
	}
	return nil
}

// GetRequest retrieves a single request record by its id.
func (ds *DataStore) GetRequest(ctx context.Context, id uint) (request Request, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("get", start, err) }()

	if err = ds.DB.WithContext(ctx).First(&request, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Request{}, notFoundError("request", id)
		}
		return Request{}, dbError(err, "get", "id", id)
	}
	return request, nil
}

// GetRecent retrieves up to limit most recent request records, newest
// first. Recency is defined by id, never by timestamp.
func (ds *DataStore) GetRecent(ctx context.Context, limit int) (requests []Request, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("recent", start, err) }()

	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	err = ds.DB.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, dbError(err, "recent", "limit", limit)
	}
	return requests, nil
}

// GetAllRequests retrieves every request record, newest first.
func (ds *DataStore) GetAllRequests(ctx context.Context) (requests []Request, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("all", start, err) }()

	if err = ds.DB.WithContext(ctx).Order("id DESC").Find(&requests).Error; err != nil {
		return nil, dbError(err, "all")
	}
	return requests, nil
}

// SearchRequests retrieves a page of request history, newest first,
// optionally restricted to a single model name.
func (ds *DataStore) SearchRequests(ctx context.Context, filters *SearchFilters) (requests []Request, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("search", start, err) }()

	limit := DefaultSearchLimit
	offset := 0
	query := ds.DB.WithContext(ctx).Order("id DESC")

	if filters != nil {
		if filters.Limit > 0 {
			limit = min(filters.Limit, MaxSearchLimit)
		}
		if filters.Offset > 0 {
			offset = filters.Offset
		}
		if filters.ModelName != "" {
			query = query.Where("model_name = ?", filters.ModelName)
		}
	}

	if err = query.Limit(limit).Offset(offset).Find(&requests).Error; err != nil {
		return nil, dbError(err, "search")
	}
	return requests, nil
}

// CountRequests returns the number of records matching the search
// filters, ignoring pagination.
func (ds *DataStore) CountRequests(ctx context.Context, filters *SearchFilters) (count int64, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("count", start, err) }()

	query := ds.DB.WithContext(ctx).Model(&Request{})
	if filters != nil && filters.ModelName != "" {
		query = query.Where("model_name = ?", filters.ModelName)
	}
	if err = query.Count(&count).Error; err != nil {
		return 0, dbError(err, "count")
	}
	return count, nil
}
