package localstore

import (
	"context"
	"strings"

	"github.com/driftlab/assessor/pkg/models"
)

// DraftStore is the local half of draft persistence. Implementations keep
// an explicit index from form id to summary metadata so listings and
// presence checks never scan full records.
type DraftStore interface {
	// Save writes the record and its index entry. The record write is
	// atomic from the caller's perspective.
	Save(ctx context.Context, record *models.DraftRecord) error

	// Get returns the record for a form id, or ErrDraftNotFound.
	Get(ctx context.Context, formID string) (*models.DraftRecord, error)

	// Latest returns the most recently saved record, or ErrNoDrafts.
	Latest(ctx context.Context) (*models.DraftRecord, error)

	// Delete removes a record and its index entry. Deleting a missing
	// draft is not an error.
	Delete(ctx context.Context, formID string) error

	// List returns index entries for every saved draft, newest first.
	List(ctx context.Context) ([]models.DraftSummary, error)

	// Has reports whether at least one draft is saved. It reads only the
	// index, cheap enough for UI gating.
	Has(ctx context.Context) bool

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

var supportedProviders = []string{"file", "redis"}

// NewDraftStore selects a backend from the state URL scheme: redis:// for a
// shared redis instance, anything else is treated as a file root.
func NewDraftStore(stateURL string) (DraftStore, error) {
	switch Provider(stateURL) {
	case "redis":
		return NewRedisStore(stateURL)
	default:
		return NewFileStore(stateURL), nil
	}
}

// Provider reports which backend a state URL selects.
func Provider(stateURL string) string {
	parts := strings.Split(stateURL, "://")

	provider := parts[0]
	for _, supported := range supportedProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
