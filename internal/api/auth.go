package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cabinrent/internal/models"
	"cabinrent/internal/service"

	"github.com/gorilla/websocket"
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	requestIDKey
)

var errMissingToken = errors.New("missing bearer token")

// anonymousAdmin is attached to every request when auth is switched off.
var anonymousAdmin = &service.Claims{Username: "anonymous", Role: models.RoleAdmin}

func (s *HTTPServer) staff(h http.HandlerFunc) http.Handler {
	return s.requireRole(h, false)
}

func (s *HTTPServer) admin(h http.HandlerFunc) http.Handler {
	return s.requireRole(h, true)
}

func (s *HTTPServer) requireRole(h http.HandlerFunc, adminOnly bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil && !errors.Is(err, errMissingToken) && !errors.Is(err, service.ErrInvalidToken) {
			s.fail(w, r, err)
			return
		}
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="cabinrent"`)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if adminOnly && !claims.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func (s *HTTPServer) authenticate(r *http.Request) (*service.Claims, error) {
	if !s.cfg.Auth.Enabled {
		return anonymousAdmin, nil
	}
	token := bearerToken(r)
	if token == "" {
		return nil, errMissingToken
	}
	return s.svc.Auth.Authenticate(r.Context(), token)
}

// bearerToken reads the Authorization header. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass the token as access_token instead.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func claimsFrom(ctx context.Context) *service.Claims {
	if c, ok := ctx.Value(claimsKey).(*service.Claims); ok {
		return c
	}
	return anonymousAdmin
}

func actorFrom(r *http.Request) service.Actor {
	return claimsFrom(r.Context()).Actor()
}
