// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/errors"
	"payoutdesk/pkg/logger"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const ctxPrincipalKey contextKey = "principal"

// Claims is the bearer token payload issued by the identity provider.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Status string `json:"status,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalLookup returns the stored role and status of a user. When set,
// the stored values override the token so deactivation takes effect at once.
type PrincipalLookup interface {
	FindPrincipal(ctx context.Context, id uuid.UUID) (domain.Principal, error)
}

// AuthMiddleware validates bearer JWTs and injects the principal into the context.
type AuthMiddleware struct {
	jwtSecret []byte
	lookup    PrincipalLookup
	logger    logger.Logger
}

// NewAuthMiddleware constructs an AuthMiddleware. lookup may be nil.
func NewAuthMiddleware(secret string, lookup PrincipalLookup, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: []byte(secret), lookup: lookup, logger: log}
}

// Authenticate enforces bearer auth. Inactive principals are rejected as
// unauthenticated.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, errors.New(errors.CodeUnauthorized, "authorization header required"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, errors.New(errors.CodeUnauthorized, "invalid authorization format"))
			return
		}

		principal, err := m.principalFromToken(parts[1])
		if err != nil {
			jsonError(w, err)
			return
		}

		if m.lookup != nil {
			stored, err := m.lookup.FindPrincipal(r.Context(), principal.ID)
			if err != nil {
				if errors.CodeOf(err) != errors.CodeUnauthorized {
					m.logger.Error("Failed to load principal", map[string]interface{}{
						"user_id": principal.ID,
						"error":   err.Error(),
					})
				}
				jsonError(w, errors.ErrUnauthorized)
				return
			}
			principal = stored
		}

		if !principal.Active() {
			jsonError(w, errors.New(errors.CodeUnauthorized, "principal is inactive"))
			return
		}

		if rw, ok := w.(*responseWriter); ok {
			rw.principal = &principal
		}

		ctx := WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) principalFromToken(raw string) (domain.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return domain.Principal{}, errors.New(errors.CodeUnauthorized, "invalid token")
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return domain.Principal{}, errors.New(errors.CodeUnauthorized, "invalid user id in token")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Principal{}, errors.New(errors.CodeUnauthorized, "invalid role in token")
	}
	status := domain.PrincipalStatus(claims.Status)
	if status == "" {
		status = domain.PrincipalStatusActive
	}

	return domain.Principal{ID: id, Role: role, Status: status}, nil
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// PrincipalFromContext returns the authenticated principal.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(domain.Principal)
	return p, ok
}

type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func jsonError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Code = errors.CodeOf(err)
	body.Error.Message = "internal server error"
	var coded *errors.Error
	if errors.As(err, &coded) {
		body.Error.Message = coded.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatus(body.Error.Code))
	_ = json.NewEncoder(w).Encode(body)
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := os.Getenv("CORS_ALLOWED_ORIGINS")
		origin := r.Header.Get("Origin")
		if strings.TrimSpace(allowed) != "" {
			for _, o := range strings.Split(allowed, ",") {
				if strings.EqualFold(strings.TrimSpace(o), origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		} else if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
