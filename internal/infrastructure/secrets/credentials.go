package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/infrastructure/system"
)

// Credentials implements ports.AuthProvider on top of a Resolver, mapping
// package hosts to the secrets that hold their credentials.
type Credentials struct {
	resolver *Resolver
	hosts    map[string]system.CredentialConfig
}

var _ ports.AuthProvider = (*Credentials)(nil)

// NewCredentials creates an AuthProvider. Host keys are matched
// case-insensitively; a host without an entry is accessed anonymously.
func NewCredentials(resolver *Resolver, hosts map[string]system.CredentialConfig) *Credentials {
	normalized := make(map[string]system.CredentialConfig, len(hosts))
	for host, cfg := range hosts {
		normalized[strings.ToLower(host)] = cfg
	}
	return &Credentials{resolver: resolver, hosts: normalized}
}

// GetCredentials returns the username and password configured for host.
func (c *Credentials) GetCredentials(ctx context.Context, host string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	cfg, ok := c.hosts[strings.ToLower(host)]
	if !ok {
		return "", "", nil
	}

	username, err := c.lookup(cfg.UsernameSecret)
	if err != nil {
		return "", "", fmt.Errorf("credentials for %s: %w", host, err)
	}
	password, err := c.lookup(cfg.PasswordSecret)
	if err != nil {
		return "", "", fmt.Errorf("credentials for %s: %w", host, err)
	}
	return username, password, nil
}

func (c *Credentials) lookup(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return c.resolver.Resolve(name)
}
