package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/version"
)

// HTTPFetcher serves http:// and https:// URLs. Credentials for the URL's
// host are obtained from the AuthProvider and sent as basic auth.
type HTTPFetcher struct {
	client *http.Client
	auth   ports.AuthProvider
}

var _ ports.PackageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTP fetcher. A nil client uses
// http.DefaultClient; a nil auth provider means anonymous access.
func NewHTTPFetcher(client *http.Client, auth ports.AuthProvider) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, auth: auth}
}

// Fetch performs a GET. 404 and 410 answer ports.ErrPackageNotFound; any
// other non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid package URL %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())

	if f.auth != nil {
		user, pass, err := f.auth.GetCredentials(ctx, u.Hostname())
		if err != nil {
			return nil, err
		}
		if user != "" || pass != "" {
			req.SetBasicAuth(user, pass)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", rawURL, ports.ErrPackageNotFound)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", rawURL, resp.Status)
	}
}
