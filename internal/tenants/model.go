package tenants

import "github.com/cockroachdb/errors"

// ErrNotFound is returned when a tenant id is unknown.
var ErrNotFound = errors.New("tenant not found")

// Tenant is an end user whose documents are processed independently.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FolderScope string `json:"folderScope,omitempty"`
	NotifyEmail string `json:"notifyEmail,omitempty"`
}
