package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := NewClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestGet_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGet_InsecureTransport(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	// Default client rejects the self-signed certificate.
	_, err := NewClient().Get(context.Background(), srv.URL)
	require.Error(t, err)

	body, err := NewClient(WithInsecureTransport()).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("backup-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "sales.bak")
	require.NoError(t, NewClient().Download(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "backup-bytes", string(data))

	// No partial file left behind.
	_, err = os.Stat(dest + ".partial")
	assert.True(t, os.IsNotExist(err))
}
