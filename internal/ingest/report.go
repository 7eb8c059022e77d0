package ingest

import "digest-backend/internal/shared/faults"

// Items used in reports for faults that are not tied to one candidate.
const (
	ItemList   = "<list>"
	ItemCommit = "<commit>"
	ItemScan   = "<scan>"
)

// ItemError is a fault recorded against one candidate (by name) or one
// scan stage.
type ItemError struct {
	Item    string `json:"item"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ScanReport is the outcome of scanning one tenant.
type ScanReport struct {
	TenantID   string      `json:"tenantId"`
	Candidates int         `json:"candidates"`
	Processed  int         `json:"processed"`
	Skipped    int         `json:"skipped"`
	Errors     []ItemError `json:"errors"`
}

// OK reports whether the scan finished without faults.
func (r ScanReport) OK() bool {
	return len(r.Errors) == 0
}

func (r *ScanReport) fail(item string, err error) {
	r.Errors = append(r.Errors, ItemError{Item: item, Kind: faults.Kind(err), Message: err.Error()})
}

// TenantError is a fault recorded against one tenant during a sweep.
type TenantError struct {
	TenantID string `json:"tenantId"`
	Item     string `json:"item"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// SweepReport aggregates the scans of every tenant.
type SweepReport struct {
	Tenants   int           `json:"tenants"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Errors    []TenantError `json:"errors"`
	Scans     []ScanReport  `json:"scans"`
}

func (s *SweepReport) add(r ScanReport) {
	s.Processed += r.Processed
	s.Skipped += r.Skipped
	for _, e := range r.Errors {
		s.Errors = append(s.Errors, TenantError{TenantID: r.TenantID, Item: e.Item, Kind: e.Kind, Message: e.Message})
	}
	s.Scans = append(s.Scans, r)
}
