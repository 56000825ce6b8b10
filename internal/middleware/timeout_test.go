package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func newTimeoutRouter(d time.Duration, handler gin.HandlerFunc, skip ...string) *gin.Engine {
	r := gin.New()
	r.Use(Timeout(d, skip...))
	r.GET("/api/v1/track/:code", handler)
	r.POST("/api/v1/admin/uploads/images", handler)
	return r
}

func TestTimeout_FastHandler(t *testing.T) {
	r := newTimeoutRouter(100*time.Millisecond, func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			t.Error("request context has no deadline")
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	if w := serve(r, http.MethodGet, "/api/v1/track/RODOVAR1234", nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestTimeout_ExpiredWithoutResponse(t *testing.T) {
	r := newTimeoutRouter(5*time.Millisecond, func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	if w := serve(r, http.MethodGet, "/api/v1/track/RODOVAR1234", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestTimeout_WrittenResponseKept(t *testing.T) {
	r := newTimeoutRouter(5*time.Millisecond, func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"done": true})
		time.Sleep(20 * time.Millisecond)
	})

	if w := serve(r, http.MethodGet, "/api/v1/track/RODOVAR1234", nil); w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestTimeout_SkippedPrefix(t *testing.T) {
	r := newTimeoutRouter(time.Millisecond, func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			t.Error("skipped path got a deadline")
		}
		c.Status(http.StatusCreated)
	}, "/api/v1/admin/uploads")

	if w := serve(r, http.MethodPost, "/api/v1/admin/uploads/images", nil); w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}
