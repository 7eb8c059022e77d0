package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/shared/util"
	"digest-backend/internal/source"
)

// Source serves documents from a directory tree. A scope is a
// sub-directory of the root; file modification time stands in for the
// creation timestamp.
type Source struct {
	root string
}

// New creates a local source rooted at root.
func New(root string) (*Source, error) {
	if strings.TrimSpace(root) == "" {
		return nil, faults.Configuration("local source directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, faults.Configuration(fmt.Sprintf("resolve local source directory: %v", err))
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, faults.Configuration(fmt.Sprintf("create local source directory: %v", err))
	}
	return &Source{root: abs}, nil
}

// List walks the scope directory and returns matching files ordered by
// creation time, then name.
func (s *Source) List(ctx context.Context, scope, contentType string, since time.Time) ([]source.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, faults.Transfer(err, "list")
	}
	dir, err := s.resolve(scope)
	if err != nil {
		return nil, faults.Transfer(err, "list")
	}
	ext := source.ExtensionFor(contentType)

	var files []source.File
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(d.Name()), ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(since) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, source.File{
			ID:        filepath.ToSlash(rel),
			Name:      d.Name(),
			CreatedAt: info.ModTime().UTC(),
			Link:      "file://" + filepath.ToSlash(path),
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, faults.Transfer(err, "list "+dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
	return files, nil
}

// Download opens the file identified by id.
func (s *Source) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, faults.Transfer(err, "download")
	}
	path, err := s.resolve(id)
	if err != nil || path == s.root {
		return nil, faults.Transfer(errors.Newf("invalid document id %q", id), "download")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, faults.Transfer(err, "download "+id)
	}
	return f, nil
}

// Upload writes r under scope with a random prefix.
func (s *Source) Upload(ctx context.Context, r io.Reader, name, scope string) (source.Uploaded, error) {
	if err := ctx.Err(); err != nil {
		return source.Uploaded{}, faults.Transfer(err, "upload")
	}
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		return source.Uploaded{}, faults.Invalid(fmt.Sprintf("file name %q: %v", name, err))
	}
	dir, err := s.resolve(scope)
	if err != nil {
		return source.Uploaded{}, faults.Transfer(err, "upload")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return source.Uploaded{}, faults.Transfer(err, "mkdir")
	}

	fullPath := filepath.Join(dir, fmt.Sprintf("%s_%s", util.RandomID(), sanitized))
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return source.Uploaded{}, faults.Transfer(err, "create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(fullPath)
		return source.Uploaded{}, faults.Transfer(err, "write body")
	}
	if err := f.Close(); err != nil {
		return source.Uploaded{}, faults.Transfer(err, "close file")
	}

	rel, _ := filepath.Rel(s.root, fullPath)
	return source.Uploaded{
		ID:   filepath.ToSlash(rel),
		Link: "file://" + filepath.ToSlash(fullPath),
	}, nil
}

// resolve maps a scope or id to a path inside root.
func (s *Source) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(rel)))
	if clean == "." {
		return s.root, nil
	}
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", errors.Newf("path %q escapes source root", rel)
	}
	return filepath.Join(s.root, clean), nil
}

var _ source.Source = (*Source)(nil)
