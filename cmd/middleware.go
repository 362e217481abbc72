package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"

	"leadgenBack/internal/handlers"
	"leadgenBack/internal/models"
)

var errUnauthorized = errors.New("unauthorized")

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func makeResponseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type loggingWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)
		app.logger.WithFields(logrus.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"uri":      r.URL.RequestURI(),
			"status":   lw.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.logger.WithField("uri", r.URL.RequestURI()).Errorf("panic: %v", err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// parseToken validates an HS256 access token and returns its principal.
func (app *application) parseToken(raw string) (models.Principal, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(app.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, errUnauthorized
	}
	if claims.Subject == "" || claims.WorkspaceID == "" {
		return models.Principal{}, errUnauthorized
	}
	role := claims.Role
	if role == "" {
		role = models.RoleMember
	}
	return models.Principal{
		UserID:      claims.Subject,
		WorkspaceID: claims.WorkspaceID,
		Role:        role,
		Email:       claims.Email,
	}, nil
}

func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, `{"error":"authorization header missing or invalid"}`, http.StatusUnauthorized)
			return
		}
		p, err := app.parseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		if err := app.workspaceService.EnsureKnown(r.Context(), p.WorkspaceID); err != nil {
			app.logger.Errorf("ensure workspace %s: %v", p.WorkspaceID, err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(handlers.WithPrincipal(r.Context(), p)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := handlers.PrincipalFrom(r.Context())
		if !ok || !p.IsAdmin() {
			http.Error(w, `{"error":"forbidden: only admins allowed"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyAuth authenticates machine ingestion through the X-API-Key header.
func (app *application) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			http.Error(w, `{"error":"api key missing"}`, http.StatusUnauthorized)
			return
		}
		p, err := app.workspaceService.AuthenticateAPIKey(r.Context(), key)
		if err != nil {
			if !errors.Is(err, models.ErrInvalidCredentials) {
				app.logger.Errorf("api key auth: %v", err)
			}
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(handlers.WithPrincipal(r.Context(), p)))
	})
}

// rateLimitKey buckets authenticated callers by workspace and everyone else by address.
func rateLimitKey(r *http.Request) string {
	if p, ok := handlers.PrincipalFrom(r.Context()); ok {
		return "ws:" + p.WorkspaceID
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		if ws, _, found := strings.Cut(key, "."); found {
			return "ws:" + ws
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
