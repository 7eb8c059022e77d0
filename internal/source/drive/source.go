package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/source"
)

const listFields = "nextPageToken, files(id, name, createdTime, webViewLink, size)"

// Source lists and stores documents in Google Drive. A scope is a folder id.
type Source struct {
	svc *drive.Service
}

// New builds a Drive source from an OAuth client credentials file and a
// previously authorized token file.
func New(ctx context.Context, credentialsFile, tokenFile string) (*Source, error) {
	cfg, err := LoadOAuthConfig(credentialsFile, "")
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return NewWithClient(ctx, cfg.Client(ctx, tok))
}

// NewWithClient builds a Drive source on an already authorized HTTP client.
// Extra options (such as option.WithEndpoint) are passed to the Drive service.
func NewWithClient(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*Source, error) {
	if client == nil {
		return nil, faults.Configuration("drive http client is required")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, faults.Configuration(fmt.Sprintf("create drive service: %v", err))
	}
	return &Source{svc: svc}, nil
}

// List queries non-trashed files of contentType created at or after since,
// optionally inside the scope folder.
func (s *Source) List(ctx context.Context, scope, contentType string, since time.Time) ([]source.File, error) {
	var files []source.File
	call := s.svc.Files.List().
		Q(Query(scope, contentType, since)).
		Fields(listFields).
		OrderBy("createdTime").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		PageSize(100)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			created, err := time.Parse(time.RFC3339, f.CreatedTime)
			if err != nil {
				created = time.Time{}
			}
			files = append(files, source.File{
				ID:        f.Id,
				Name:      f.Name,
				CreatedAt: created.UTC(),
				Link:      f.WebViewLink,
				Size:      f.Size,
			})
		}
		return nil
	})
	if err != nil {
		return nil, faults.Transfer(err, "drive list")
	}
	return files, nil
}

// Download streams file content.
func (s *Source) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := s.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, faults.Transfer(err, "drive download "+id)
	}
	return resp.Body, nil
}

// Upload creates a PDF file inside the scope folder.
func (s *Source) Upload(ctx context.Context, r io.Reader, name, scope string) (source.Uploaded, error) {
	meta := &drive.File{Name: name, MimeType: source.ContentTypePDF}
	if scope = strings.TrimSpace(scope); scope != "" {
		meta.Parents = []string{scope}
	}
	created, err := s.svc.Files.Create(meta).
		Media(r, googleapi.ContentType(source.ContentTypePDF)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return source.Uploaded{}, faults.Transfer(err, "drive upload "+name)
	}
	return source.Uploaded{ID: created.Id, Link: created.WebViewLink}, nil
}

// Query builds the Drive search expression used by List.
func Query(scope, contentType string, since time.Time) string {
	parts := []string{
		fmt.Sprintf("mimeType = '%s'", escape(contentType)),
		fmt.Sprintf("createdTime >= '%s'", since.UTC().Format(time.RFC3339)),
		"trashed = false",
	}
	if scope = strings.TrimSpace(scope); scope != "" {
		parts = append(parts, fmt.Sprintf("'%s' in parents", escape(scope)))
	}
	return strings.Join(parts, " and ")
}

func escape(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}

var _ source.Source = (*Source)(nil)
