package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	user, pass string
	err        error
	hosts      []string
}

func (a *staticAuth) GetCredentials(_ context.Context, host string) (string, string, error) {
	a.hosts = append(a.hosts, host)
	return a.user, a.pass, a.err
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib-1.0.jar"), []byte("archive"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "lib-2.0"), 0o755))
	ctx := context.Background()

	fileURL := func(p string) string { return (&url.URL{Scheme: "file", Path: p}).String() }

	rc, err := FileFetcher{}.Fetch(ctx, fileURL(filepath.Join(dir, "lib-1.0.jar")))
	require.NoError(t, err)
	assert.Equal(t, "archive", readAll(t, rc))

	_, err = FileFetcher{}.Fetch(ctx, fileURL(filepath.Join(dir, "missing.jar")))
	assert.ErrorIs(t, err, ports.ErrPackageNotFound)

	_, err = FileFetcher{}.Fetch(ctx, fileURL(filepath.Join(dir, "lib-2.0")))
	assert.ErrorIs(t, err, ports.ErrPackageNotFound)

	_, err = FileFetcher{}.Fetch(ctx, "http://example.com/x")
	assert.ErrorContains(t, err, "not a file URL")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = FileFetcher{}.Fetch(cancelled, fileURL(filepath.Join(dir, "lib-1.0.jar")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/java/lib-1.0.jar":
			if !strings.HasPrefix(r.UserAgent(), "classrunner/") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte("jar bytes"))
		case "/java/private.jar":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "bob" || pass != "hunter2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte("private"))
		case "/java/gone.jar":
			w.WriteHeader(http.StatusGone)
		case "/java/broken.jar":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		f := NewHTTPFetcher(srv.Client(), nil)
		rc, err := f.Fetch(ctx, srv.URL+"/java/lib-1.0.jar")
		require.NoError(t, err)
		assert.Equal(t, "jar bytes", readAll(t, rc))

		_, err = f.Fetch(ctx, srv.URL+"/java/private.jar")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ports.ErrPackageNotFound)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("basic auth from provider", func(t *testing.T) {
		auth := &staticAuth{user: "bob", pass: "hunter2"}
		f := NewHTTPFetcher(srv.Client(), auth)
		rc, err := f.Fetch(ctx, srv.URL+"/java/private.jar")
		require.NoError(t, err)
		assert.Equal(t, "private", readAll(t, rc))
		assert.Equal(t, []string{"127.0.0.1"}, auth.hosts)
	})

	t.Run("provider failure", func(t *testing.T) {
		boom := errors.New("vault sealed")
		f := NewHTTPFetcher(srv.Client(), &staticAuth{err: boom})
		_, err := f.Fetch(ctx, srv.URL+"/java/lib-1.0.jar")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("not found statuses", func(t *testing.T) {
		f := NewHTTPFetcher(srv.Client(), nil)
		for _, p := range []string{"/java/absent.jar", "/java/gone.jar"} {
			_, err := f.Fetch(ctx, srv.URL+p)
			assert.ErrorIs(t, err, ports.ErrPackageNotFound, p)
		}
	})

	t.Run("server error", func(t *testing.T) {
		_, err := NewHTTPFetcher(srv.Client(), nil).Fetch(ctx, srv.URL+"/java/broken.jar")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ports.ErrPackageNotFound)
		assert.Contains(t, err.Error(), "unexpected status")
	})
}

func TestMux(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jar"), []byte("a"), 0o600))

	m := NewMux()
	m.Handle(FileFetcher{}, "file", "FILE")

	rc, err := m.Fetch(context.Background(), "file://"+filepath.ToSlash(filepath.Join(dir, "a.jar")))
	require.NoError(t, err)
	assert.Equal(t, "a", readAll(t, rc))

	_, err = m.Fetch(context.Background(), "ftp://host/a.jar")
	assert.ErrorContains(t, err, `no fetcher for scheme "ftp"`)

	_, err = m.Fetch(context.Background(), "::bad")
	assert.ErrorContains(t, err, "invalid package URL")
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url, bucket, key string
		wantErr          bool
	}{
		{url: "s3://pkgs/java/lib-1.0.jar", bucket: "pkgs", key: "java/lib-1.0.jar"},
		{url: "s3://pkgs/lib-1.0/lib/Foo.wasm", bucket: "pkgs", key: "lib-1.0/lib/Foo.wasm"},
		{url: "s3://pkgs/", wantErr: true},
		{url: "s3:///key", wantErr: true},
		{url: "http://pkgs/key", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

// fakeS3 answers path-style object requests for a fixed set of objects.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
					`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.WriteString(w, body)
	}))
}

func TestS3Fetcher(t *testing.T) {
	srv := fakeS3(t, map[string]string{"/pkgs/java/lib-1.0.jar": "jar bytes"})
	defer srv.Close()

	auth := &staticAuth{user: "minioadmin", pass: "minioadmin"}
	f := NewS3Fetcher(S3Options{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
		Auth:     auth,
	})
	ctx := context.Background()

	rc, err := f.Fetch(ctx, "s3://pkgs/java/lib-1.0.jar")
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", readAll(t, rc))

	_, err = f.Fetch(ctx, "s3://pkgs/java/missing.jar")
	assert.ErrorIs(t, err, ports.ErrPackageNotFound)

	assert.Equal(t, []string{"127.0.0.1"}, auth.hosts, "credentials resolved once")
}

func TestS3Fetcher_NoEndpoint(t *testing.T) {
	_, err := NewS3Fetcher(S3Options{}).Fetch(context.Background(), "s3://pkgs/a.jar")
	assert.ErrorContains(t, err, "s3 endpoint is not configured")
}
