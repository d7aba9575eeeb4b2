// Package web exposes the class runner over HTTP.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeyIdentity contextKey = "identity"

// Identity is the authenticated requester.
type Identity struct {
	Subject  string
	Roles    []string
	Elevated bool
}

// Anonymous is the identity of a request without a valid token.
var Anonymous = Identity{}

// IdentityFromContext returns the identity stored by IdentityMiddleware.
func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKeyIdentity).(Identity); ok {
		return id
	}
	return Anonymous
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityOptions configures token verification.
type IdentityOptions struct {
	// Key is the HMAC signing key. Empty disables verification and every
	// request is anonymous.
	Key       []byte
	Issuer    string
	AdminRole string
	// Admins are subjects with elevated rights regardless of roles.
	Admins []string
}

// IdentityMiddleware resolves the requester from a bearer token. A missing
// header yields the anonymous identity; an invalid token is rejected.
func IdentityMiddleware(opts IdentityOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if len(opts.Key) == 0 || authHeader == "" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Anonymous)))
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			id, err := verifyToken(tokenString, opts)
			if err != nil {
				logger.Debug("rejected token", "error", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func verifyToken(tokenString string, opts IdentityOptions) (Identity, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return opts.Key, nil
	}, parserOpts...)
	if err != nil {
		return Anonymous, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Anonymous, fmt.Errorf("invalid claims type")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Anonymous, fmt.Errorf("missing subject")
	}

	id := Identity{Subject: subject}
	if roles, ok := claims["roles"].([]any); ok {
		for _, role := range roles {
			if s, ok := role.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	id.Elevated = slices.Contains(opts.Admins, subject) ||
		(opts.AdminRole != "" && slices.Contains(id.Roles, opts.AdminRole))
	return id, nil
}
