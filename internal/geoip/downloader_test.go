package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDBDownloadsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mmdb-bytes"))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb-bytes", string(content))
}

func TestEnsureDBKeepsFreshCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("current"), 0o600))

	// The URL is unreachable on purpose: a fresh local copy must
	// short-circuit before any network activity.
	assert.NoError(t, EnsureDB(context.Background(), path, "http://127.0.0.1:1/db", time.Hour))
}

func TestEnsureDBFailedFetchKeepsStaleCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	require.Error(t, EnsureDB(context.Background(), path, "http://127.0.0.1:1/db", time.Hour))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(content), "a failed download must not touch the existing database")
}

func TestEnsureDBRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.Error(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file may appear after a rejected download")
}
