// model.go this code defines the data model for the application
package datastore

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Request represents a single processed image and its fruit counts.
// Records are append-only: once saved they are never updated or deleted,
// and id is the canonical recency ordering. CreatedAt is informational
// only, duplicate timestamps are possible under concurrent inserts.
type Request struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Filename        string            `json:"filename"`
	OutputReference string            `json:"output_reference"`
	Counts          datatypes.JSONMap `gorm:"type:json" json:"counts"`
	TotalCount      int               `json:"total_count"`
	ModelName       string            `gorm:"index:idx_requests_model_name" json:"model_name"`
	CreatedAt       time.Time         `json:"created_at"`
	ProcessingMs    int64             `json:"processing_ms"`
}

// CountsAsInts decodes the JSON counts column into a map of class name to
// count. Values scanned from the database arrive as json.Number, values
// set in memory are plain ints; anything else is reported through the
// error so callers can decide whether to skip the record.
func (r *Request) CountsAsInts() (map[string]int, error) {
	counts := make(map[string]int, len(r.Counts))
	for class, value := range r.Counts {
		switch v := value.(type) {
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, validationError("counts value is not an integer", class, value)
			}
			counts[class] = int(n)
		case float64:
			counts[class] = int(v)
		case int:
			counts[class] = v
		case int64:
			counts[class] = int(v)
		default:
			return nil, validationError("counts value is not numeric", class, value)
		}
	}
	return counts, nil
}
