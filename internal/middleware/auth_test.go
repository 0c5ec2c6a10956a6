package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupAuthRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(apiKey).Authenticate())
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/health/live", ok)
	r.GET("/risk/actions/query", ok)
	return r
}

func request(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMissingKeyRejected(t *testing.T) {
	r := setupAuthRouter("secret")

	if w := request(r, "/risk/actions/query", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	r := setupAuthRouter("secret")

	w := request(r, "/risk/actions/query", map[string]string{"X-API-Key": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestValidKeyAccepted(t *testing.T) {
	r := setupAuthRouter("secret")

	w := request(r, "/risk/actions/query", map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestBearerFallbackAccepted(t *testing.T) {
	r := setupAuthRouter("secret")

	w := request(r, "/risk/actions/query", map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHealthPathsArePublic(t *testing.T) {
	r := setupAuthRouter("secret")

	if w := request(r, "/health/live", nil); w.Code != http.StatusOK {
		t.Errorf("expected public health endpoint, got %d", w.Code)
	}
}

func TestUnconfiguredKeyReturnsUnavailable(t *testing.T) {
	r := setupAuthRouter("")

	if w := request(r, "/risk/actions/query", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no key is configured, got %d", w.Code)
	}
}
