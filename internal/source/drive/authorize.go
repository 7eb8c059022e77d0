package drive

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"digest-backend/internal/shared/server/respond"
	"digest-backend/internal/shared/telemetry"
)

// Authorizer runs the one-time OAuth consent flow that produces the token
// file the Drive source reads.
type Authorizer struct {
	oauthConfig *oauth2.Config
	tokenFile   string
	stateTTL    time.Duration
	states      *stateStore
}

// NewAuthorizer builds an Authorizer. cfg may be nil when Drive is not
// configured; the routes then answer 503.
func NewAuthorizer(cfg *oauth2.Config, tokenFile string) *Authorizer {
	return &Authorizer{
		oauthConfig: cfg,
		tokenFile:   tokenFile,
		stateTTL:    5 * time.Minute,
		states:      newStateStore(),
	}
}

// RegisterRoutes attaches the consent routes.
func (a *Authorizer) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/drive/authorize", a.start)
	rg.GET("/drive/callback", a.callback)
}

func (a *Authorizer) start(c *gin.Context) {
	if a.oauthConfig == nil || a.oauthConfig.ClientID == "" || a.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusServiceUnavailable, "drive_not_configured", "Google Drive OAuth is not configured", nil)
		return
	}
	state := uuid.NewString()
	a.states.put(state, time.Now().Add(a.stateTTL))
	c.Redirect(http.StatusFound, a.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))
}

func (a *Authorizer) callback(c *gin.Context) {
	if a.oauthConfig == nil {
		respond.Error(c, http.StatusServiceUnavailable, "drive_not_configured", "Google Drive OAuth is not configured", nil)
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !a.states.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	token, err := a.oauthConfig.Exchange(c.Request.Context(), code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	if err := SaveToken(a.tokenFile, token); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store token", nil)
		return
	}
	telemetry.Info("drive.authorized", map[string]any{"token_file": a.tokenFile})
	respond.OK(c, gin.H{"authorized": true})
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	s.items[state] = exp
	s.mu.Unlock()
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}
