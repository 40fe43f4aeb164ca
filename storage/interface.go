package storage

import (
	"context"

	"github.com/buidlcat/friendrekt/models"
)

// DefaultListLimit caps ListSnipes when the caller passes a non-positive limit.
const DefaultListLimit = 50

// SnipeSummary aggregates the audit log.
type SnipeSummary struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// DataStore defines the interface for snipe audit backends
type DataStore interface {
	Close() error

	// SaveSnipe appends a submission attempt and sets rec.ID.
	SaveSnipe(ctx context.Context, rec *models.SnipeRecord) error
	// ListSnipes returns the most recent attempts, newest first.
	ListSnipes(ctx context.Context, limit int) ([]models.SnipeRecord, error)
	GetSnipeSummary(ctx context.Context) (SnipeSummary, error)
}

// Ensure all implementations satisfy the interface
var _ DataStore = (*Store)(nil)
var _ DataStore = (*PostgresStore)(nil)
var _ DataStore = (*MockStore)(nil)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
