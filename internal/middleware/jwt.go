// internal/middleware/jwt.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Fallback secret for local development; production loads JWT_SECRET.
	defaultSecret = "inkgate-dev-secret-change-in-production"

	// Token expiration time - 24 hours
	tokenExpiration = 24 * time.Hour
)

var jwtSecret = func() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return defaultSecret
}()

// SetSecret overrides the signing secret, normally from config at startup.
func SetSecret(secret string) {
	if secret != "" {
		jwtSecret = secret
	}
}

// Claims represents the JWT claims for our application. The viewer identity
// is an opaque string minted by the external auth collaborator; this service
// never manages sessions, it only reads the subject back out.
type Claims struct {
	ViewerID string `json:"viewer_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for the given viewer identity.
// Exists for the simulator and tests; real tokens come from the auth
// collaborator sharing the same secret.
func GenerateToken(viewerID string) (string, error) {
	expirationTime := time.Now().Add(tokenExpiration)

	claims := &Claims{
		ViewerID: viewerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "inkgate-api",
			Subject:   viewerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateToken validates the provided JWT token
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ViewerID == "" {
		claims.ViewerID = claims.Subject
	}
	if claims.ViewerID == "" {
		return nil, errors.New("token carries no viewer identity")
	}
	return claims, nil
}

// Define a custom context key type to avoid collisions
type contextKey string

// ViewerIDKey is the key used to store the viewer identity in the context
const ViewerIDKey contextKey = "viewer_id"

// SetViewerIDInContext saves the viewer identity in the request context
func SetViewerIDInContext(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, ViewerIDKey, viewerID)
}

// GetViewerIDFromContext retrieves the viewer identity from the context.
// Returns "" for anonymous requests.
func GetViewerIDFromContext(ctx context.Context) string {
	viewerID, _ := ctx.Value(ViewerIDKey).(string)
	return viewerID
}

// RequireViewer wraps a handler that mutates state: the request must carry a
// valid bearer token, and is rejected before the handler runs otherwise.
func RequireViewer(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := claimsFromRequest(r)
		if err != nil {
			http.Error(w, "Authentication required: "+err.Error(), http.StatusUnauthorized)
			return
		}
		ctx := SetViewerIDInContext(r.Context(), claims.ViewerID)
		handler(w, r.WithContext(ctx))
	}
}

// WithOptionalViewer wraps a read handler: a valid token attaches the viewer
// identity, anything else leaves the request anonymous. Listing reads are
// open to everyone; the gate decides what an anonymous viewer sees.
func WithOptionalViewer(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, err := claimsFromRequest(r); err == nil {
			r = r.WithContext(SetViewerIDInContext(r.Context(), claims.ViewerID))
		}
		handler(w, r)
	}
}

func claimsFromRequest(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.New("authorization header required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errors.New("invalid authorization format")
	}
	return ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
}
