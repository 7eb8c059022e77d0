package records

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrTxDone is returned when a finished transaction is reused.
	ErrTxDone = errors.New("transaction already committed or rolled back")
)

// Record is the persisted digest of one remote document.
type Record struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Title       string    `json:"title"`
	FilePath    string    `json:"filePath"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	KeyMessages []string  `json:"keyMessages"`
	CreatedAt   time.Time `json:"createdAt"`
	ProcessedAt time.Time `json:"processedAt"`
}
