package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// TenantEntry is one tenant declared in the tenants file.
type TenantEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	FolderScope string `yaml:"folder"`
	NotifyEmail string `yaml:"email"`
}

type tenantsFile struct {
	Tenants []TenantEntry `yaml:"tenants"`
}

// LoadTenantsFile parses a YAML file of the form:
//
//	tenants:
//	  - id: alice
//	    folder: 1AbCdEf
//	    email: alice@example.com
func LoadTenantsFile(path string) ([]TenantEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tenants file %s", path)
	}
	return ParseTenants(raw)
}

// ParseTenants decodes tenants YAML and rejects blank or duplicate ids.
func ParseTenants(raw []byte) ([]TenantEntry, error) {
	var file tenantsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "parse tenants")
	}
	seen := make(map[string]struct{}, len(file.Tenants))
	out := make([]TenantEntry, 0, len(file.Tenants))
	for i, t := range file.Tenants {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, errors.Newf("tenant #%d: id is required", i+1)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, errors.Newf("tenant %s declared twice", t.ID)
		}
		seen[t.ID] = struct{}{}
		t.FolderScope = strings.TrimSpace(t.FolderScope)
		t.NotifyEmail = strings.TrimSpace(t.NotifyEmail)
		if t.Name == "" {
			t.Name = t.ID
		}
		out = append(out, t)
	}
	return out, nil
}
