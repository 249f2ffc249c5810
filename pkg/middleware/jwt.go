package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mongosession/pkg/claims"
	"mongosession/pkg/session"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gorilla/mux"
)

var (
	noSessUrls = map[string]string{
		"/api/login":    http.MethodPost,
		"/api/register": http.MethodPost,
	}
)

// SessionLoader resolves the session a token points at and records the
// access. *session.Repository satisfies it.
type SessionLoader interface {
	FindByID(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
}

// CheckJWT authenticates the request by token and loads the session named in
// its sid claim. Tokens pointing at a missing or foreign session are rejected.
func CheckJWT(secret []byte, sessions SessionLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := mux.CurrentRoute(r)
			if route == nil {
				http.Error(w, "Route not found", http.StatusNotFound)
				return
			}
			template, err := route.GetPathTemplate()
			if err != nil {
				http.Error(w, "Route not found", http.StatusNotFound)
				return
			}

			if method, ok := noSessUrls[template]; ok && method == r.Method {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w)
				return
			}

			token := strings.TrimPrefix(auth, "Bearer ")

			hashSecretGetter := func(token *jwt.Token) (interface{}, error) {
				method, ok := token.Method.(*jwt.SigningMethodHMAC)
				if !ok || method.Alg() != "HS256" {
					return nil, errors.New("bad sign method")
				}
				return secret, nil
			}

			c := &claims.Claims{}

			parsed, err := jwt.ParseWithClaims(token, c, hashSecretGetter)
			if err != nil || !parsed.Valid || c.User.Username == "" || c.SessionID == "" {
				logger.Warn("rejected token", "path", r.URL.Path, "error", err)
				unauthorized(w)
				return
			}

			s, err := sessions.FindByID(r.Context(), c.SessionID)
			if err != nil {
				logger.Error("load session", "session", c.SessionID, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if s == nil {
				logger.Info("session not found", "session", c.SessionID, "user", c.User.ID)
				unauthorized(w)
				return
			}
			if owner, _ := s.Attribute(session.PrincipalNameIndexName); owner != c.User.Username {
				logger.Warn("session owner mismatch", "session", s.ID(), "user", c.User.Username)
				unauthorized(w)
				return
			}

			s.SetLastAccessedAt(time.Now().UTC().Truncate(time.Millisecond))
			if err := sessions.Save(r.Context(), s); err != nil {
				logger.Error("touch session", "session", s.ID(), "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), claims.TokenContextKey, c)
			ctx = context.WithValue(ctx, claims.SessionContextKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
