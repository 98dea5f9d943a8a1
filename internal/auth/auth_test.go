package auth_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gateguard/gateguard-api/internal/auth"
	"github.com/gin-gonic/gin"
)

func TestGateCheck(t *testing.T) {
	g := auth.NewGate("s3cret")

	tests := []struct {
		header string
		want   error
	}{
		{"", auth.ErrMissingCredential},
		{"Basic czNjcmV0", auth.ErrInvalidScheme},
		{"bearer s3cret", auth.ErrInvalidScheme},
		{"Bearer", auth.ErrInvalidScheme},
		{"Bearer wrong", auth.ErrInvalidToken},
		{"Bearer ", auth.ErrInvalidToken},
		{"Bearer s3cret", nil},
		{"Bearer  s3cret ", nil},
	}
	for _, tt := range tests {
		if got := g.Check(tt.header); !errors.Is(got, tt.want) {
			t.Errorf("Check(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", auth.RequireAPIToken(auth.NewGate("s3cret")), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAPIToken(t *testing.T) {
	router := setupAuthRouter(t)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing", "", http.StatusUnauthorized, "missing_credential"},
		{"scheme", "Token s3cret", http.StatusUnauthorized, "invalid_scheme"},
		{"token", "Bearer nope", http.StatusForbidden, "invalid_token"},
		{"ok", "Bearer s3cret", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantErr == "" {
				return
			}
			var resp map[string]any
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp["code"] != tt.wantErr {
				t.Errorf("code = %v, want %s", resp["code"], tt.wantErr)
			}
		})
	}
}
