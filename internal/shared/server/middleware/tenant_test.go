package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func tenantRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Tenant())
	router.GET("/api/v1/summaries", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant": TenantIDFromContext(c)})
	})
	router.OPTIONS("/api/v1/summaries", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestTenantFromHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", nil)
	req.Header.Set(TenantIDHeader, "acme")
	resp := httptest.NewRecorder()
	tenantRouter().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != `{"tenant":"acme"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestTenantFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries?tenant=beta-1", nil)
	resp := httptest.NewRecorder()
	tenantRouter().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestTenantMissingOrMalformed(t *testing.T) {
	for _, header := range []string{"", "  ", "../etc", "a b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", nil)
		if header != "" {
			req.Header.Set(TenantIDHeader, header)
		}
		resp := httptest.NewRecorder()
		tenantRouter().ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("header %q: expected 400, got %d", header, resp.Code)
		}
	}
}

func TestTenantAllowsOptionsWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/summaries", nil)
	resp := httptest.NewRecorder()
	tenantRouter().ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}
