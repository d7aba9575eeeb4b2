// Package fetch retrieves package bytes by URL scheme: local files, HTTP(S)
// repositories and S3-compatible buckets.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/reglet-dev/classrunner/internal/application/ports"
)

// Mux dispatches Fetch calls to the fetcher registered for the URL scheme.
type Mux struct {
	mu       sync.RWMutex
	fetchers map[string]ports.PackageFetcher
}

var _ ports.PackageFetcher = (*Mux)(nil)

// NewMux creates an empty dispatcher.
func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]ports.PackageFetcher)}
}

// Handle registers f for each scheme, replacing any earlier registration.
func (m *Mux) Handle(f ports.PackageFetcher, schemes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range schemes {
		m.fetchers[strings.ToLower(s)] = f
	}
}

// Fetch implements ports.PackageFetcher.
func (m *Mux) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid package URL %q: %w", rawURL, err)
	}

	m.mu.RLock()
	f, ok := m.fetchers[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q in %s", u.Scheme, rawURL)
	}
	return f.Fetch(ctx, rawURL)
}
