package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"leadgenBack/internal/models"
)

type principalKey struct{}

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by the auth middleware.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok && p.WorkspaceID != ""
}

// getParam returns a pat path parameter, falling back to the query string.
func getParam(r *http.Request, name string) string {
	if val := r.URL.Query().Get(":" + name); val != "" {
		return val
	}
	return r.URL.Query().Get(name)
}

func parsePaging(r *http.Request) (int, int, error) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 || l > 500 {
			return 0, 0, fmt.Errorf("invalid limit")
		}
		limit = l
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil || o < 0 {
			return 0, 0, fmt.Errorf("invalid offset")
		}
		offset = o
	}
	return limit, offset, nil
}

func parseIntQuery(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// parseDays reads a window such as ?days=7.
func parseDays(r *http.Request, name string) (time.Duration, error) {
	n, err := parseIntQuery(r, name)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * 24 * time.Hour, nil
}
