package drive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"digest-backend/internal/shared/faults"
)

// LoadOAuthConfig reads a Google OAuth client credentials file. A non-empty
// redirectURL overrides the one in the file.
func LoadOAuthConfig(credentialsFile, redirectURL string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, faults.Configuration(fmt.Sprintf("drive credentials file %s: %v", credentialsFile, err))
	}
	cfg, err := google.ConfigFromJSON(raw, drive.DriveScope)
	if err != nil {
		return nil, faults.Configuration(fmt.Sprintf("parse drive credentials: %v", err))
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// LoadToken reads an OAuth token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.Configuration(fmt.Sprintf("drive token file %s missing, authorize first: %v", path, err))
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, faults.Configuration(fmt.Sprintf("parse drive token: %v", err))
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, faults.Configuration("drive token file has no credentials")
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "mkdir")
		}
	}
	return os.WriteFile(path, raw, 0o600)
}
