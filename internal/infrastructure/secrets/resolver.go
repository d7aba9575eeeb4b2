// Package secrets deals with resolving sensitive values from external sources
// like environment variables and files.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reglet-dev/classrunner/internal/infrastructure/system"
)

// Resolver resolves secrets from configured sources and remembers every
// resolved value so the redactor can be seeded with them.
type Resolver struct {
	config *system.SecretsConfig
	cache  map[string]string
	mu     sync.RWMutex
}

// NewResolver creates a new secret resolver.
func NewResolver(config *system.SecretsConfig) *Resolver {
	return &Resolver{
		config: config,
		cache:  make(map[string]string),
	}
}

// Resolve returns the secret value by name.
// It checks sources in order: Local -> Env -> Files.
func (r *Resolver) Resolve(name string) (string, error) {
	r.mu.RLock()
	if value, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return value, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after write lock
	if value, ok := r.cache[name]; ok {
		return value, nil
	}

	value, err := r.resolveFromSources(name)
	if err != nil {
		return "", err
	}

	r.cache[name] = value
	return value, nil
}

// ResolveAll resolves every configured secret. Used at startup so all
// values are known to the redactor before the first request.
func (r *Resolver) ResolveAll() error {
	if r.config == nil {
		return nil
	}
	for _, source := range []map[string]string{r.config.Local, r.config.Env, r.config.Files} {
		for name := range source {
			if _, err := r.Resolve(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Values returns the distinct non-empty secret values resolved so far, sorted.
func (r *Resolver) Values() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.cache))
	values := make([]string, 0, len(r.cache))
	for _, v := range r.cache {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (r *Resolver) resolveFromSources(name string) (string, error) {
	if r.config == nil {
		return "", fmt.Errorf("secret %q: secrets config not present", name)
	}

	// 1. Check local secrets (dev only)
	if value, ok := r.config.Local[name]; ok {
		return value, nil
	}

	// 2. Check env var mapping
	if envVar, ok := r.config.Env[name]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return "", fmt.Errorf("secret %q: env var %q is not set", name, envVar)
		}
		return value, nil
	}

	// 3. Check file mapping (admin-controlled paths only)
	if filePath, ok := r.config.Files[name]; ok {
		// os.OpenRoot keeps the read inside the configured directory
		dir := filepath.Dir(filePath)
		base := filepath.Base(filePath)

		root, err := os.OpenRoot(dir)
		if err != nil {
			return "", fmt.Errorf("secret %q: failed to open directory %q: %w", name, dir, err)
		}
		defer func() { _ = root.Close() }()

		f, err := root.Open(base)
		if err != nil {
			return "", fmt.Errorf("secret %q: failed to open file %q: %w", name, base, err)
		}
		defer func() { _ = f.Close() }()

		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("secret %q: reading file %q: %w", name, filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return "", fmt.Errorf("secret %q not found in local, env, or files", name)
}
