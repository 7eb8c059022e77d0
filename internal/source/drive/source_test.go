package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"digest-backend/internal/shared/faults"
	"digest-backend/internal/source"
)

type fakeDrive struct {
	queries []string
	fail    bool
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost:
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "new-id", "webViewLink": "https://drive/new-id"})
	case r.URL.Query().Get("alt") == "media":
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "bytes of "+filepath.Base(r.URL.Path))
	default:
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"nextPageToken":"p2","files":[{"id":"1","name":"a.pdf","createdTime":"2026-10-12T06:00:00Z","webViewLink":"https://drive/1","size":"42"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[{"id":"2","name":"b.pdf","createdTime":"2026-10-13T06:00:00Z","webViewLink":"https://drive/2","size":"7"}]}`)
	}
}

func newTestSource(t *testing.T, fake *fakeDrive) *Source {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	src, err := NewWithClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return src
}

func TestQuery(t *testing.T) {
	since := time.Date(2026, 10, 10, 8, 0, 0, 0, time.UTC)

	q := Query("folder'1", source.ContentTypePDF, since)
	assert.Equal(t, `mimeType = 'application/pdf' and createdTime >= '2026-10-10T08:00:00Z' and trashed = false and 'folder\'1' in parents`, q)

	assert.NotContains(t, Query("", source.ContentTypePDF, since), "in parents")
}

func TestListFollowsPages(t *testing.T) {
	fake := &fakeDrive{}
	src := newTestSource(t, fake)

	files, err := src.List(context.Background(), "folder", source.ContentTypePDF, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "1", files[0].ID)
	assert.Equal(t, "https://drive/1", files[0].Link)
	assert.Equal(t, int64(42), files[0].Size)
	assert.Equal(t, time.Date(2026, 10, 13, 6, 0, 0, 0, time.UTC), files[1].CreatedAt)
	require.Len(t, fake.queries, 2)
	assert.Contains(t, fake.queries[0], "'folder' in parents")
}

func TestDownloadAndUpload(t *testing.T) {
	src := newTestSource(t, &fakeDrive{})
	ctx := context.Background()

	rc, err := src.Download(ctx, "abc")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "bytes of abc", string(body))

	up, err := src.Upload(ctx, strings.NewReader("%PDF"), "doc.pdf", "folder")
	require.NoError(t, err)
	assert.Equal(t, source.Uploaded{ID: "new-id", Link: "https://drive/new-id"}, up)
}

func TestListFailureIsTransferFault(t *testing.T) {
	src := newTestSource(t, &fakeDrive{fail: true})

	_, err := src.List(context.Background(), "", source.ContentTypePDF, time.Now())
	require.Error(t, err)
	assert.Equal(t, "transfer", faults.Kind(err))
}

func TestNewWithoutCredentialsIsConfigurationFault(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), filepath.Join(dir, "credentials.json"), filepath.Join(dir, "token.json"))
	require.Error(t, err)
	assert.Equal(t, "configuration", faults.Kind(err))
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", tok.RefreshToken)
}

func TestAuthorizerRejectsUnknownState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	a := NewAuthorizer(&oauth2.Config{ClientID: "id", RedirectURL: "http://localhost/cb"}, filepath.Join(t.TempDir(), "t.json"))
	a.RegisterRoutes(r.Group("/api/v1"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/drive/callback?state=nope&code=c", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/drive/authorize", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "access_type=offline")
}
