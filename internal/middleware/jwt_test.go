package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("u42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u42", claims.ViewerID)
	assert.Equal(t, "u42", claims.Subject)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestRequireViewer(t *testing.T) {
	handler := RequireViewer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetViewerIDFromContext(r.Context())))
	})

	// No token: rejected before the handler runs.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/blogs/like", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token: viewer identity lands in the context.
	token, err := GenerateToken("u7")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/blogs/like", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u7", w.Body.String())
}

func TestWithOptionalViewer(t *testing.T) {
	handler := WithOptionalViewer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("viewer:" + GetViewerIDFromContext(r.Context())))
	})

	// Anonymous requests pass through with an empty identity.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/blogs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viewer:", w.Body.String())

	// A bad token also stays anonymous rather than failing the read.
	req := httptest.NewRequest("GET", "/blogs", nil)
	req.Header.Set("Authorization", "Bearer junk")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viewer:", w.Body.String())
}
