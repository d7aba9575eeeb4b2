package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"

	"github.com/reglet-dev/classrunner/internal/application/ports"
)

// FileFetcher serves file:// URLs from the local filesystem.
type FileFetcher struct{}

var _ ports.PackageFetcher = FileFetcher{}

// Fetch opens the file named by rawURL. A missing file or a directory
// answers ports.ErrPackageNotFound.
func (FileFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid file URL %q: %w", rawURL, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("not a file URL: %s", rawURL)
	}

	//nolint:gosec // G304: package URLs come from administrator-edited profiles
	f, err := os.Open(u.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rawURL, ports.ErrPackageNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", rawURL, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", rawURL, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", rawURL, ports.ErrPackageNotFound)
	}
	return f, nil
}
