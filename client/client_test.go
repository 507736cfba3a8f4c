package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{
		BaseURL:  server.URL,
		APIToken: "secret-token",
		Product:  "payments-platform",
	}, zerolog.Nop())
	require.NoError(t, err)
	return c, server
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Product: "p"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestListVersions(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/products/payments-platform/versions", r.URL.Path)
		assert.Equal(t, "secret-token", r.Header.Get("api-token"))
		w.Write([]byte(`{"versions":[{"id":"ver-1","name":"v1.0"},{"id":"ver-2","name":"v2.0"}]}`))
	}))

	versions, err := c.ListVersions(context.Background())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "ver-1", versions[0].ID)
	assert.Equal(t, "v2.0", versions[1].Name)
}

func TestResolveVersion_ByNameAndID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"versions":[{"id":"ver-1","name":"v1.0"}]}`))
	}))

	byName, err := c.ResolveVersion(context.Background(), "v1.0")
	require.NoError(t, err)
	assert.Equal(t, "ver-1", byName.ID)

	byID, err := c.ResolveVersion(context.Background(), "ver-1")
	require.NoError(t, err)
	assert.Equal(t, "v1.0", byID.Name)
}

func TestResolveVersion_NotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"versions":[]}`))
	}))

	_, err := c.ResolveVersion(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, modelerrors.IsKind(err, modelerrors.KindVersionNotFound))
	assert.False(t, modelerrors.IsRetryable(err))
}

func TestFetchArtifacts_StoredVersion(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte("payload"))
	}))

	artifacts, err := c.FetchArtifacts(context.Background(), VersionHandle{ID: "ver-1", Name: "v1.0"})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), artifacts.DiagramMarkup)
	assert.Equal(t, []byte("payload"), artifacts.ThreatsRaw)
	assert.Equal(t, []byte("payload"), artifacts.CountermeasuresRaw)
	assert.Equal(t, []string{
		"/api/v2/products/payments-platform/versions/ver-1/diagram",
		"/api/v2/products/payments-platform/versions/ver-1/threats",
		"/api/v2/products/payments-platform/versions/ver-1/countermeasures",
	}, paths)
}

func TestFetchArtifacts_CurrentState(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte("payload"))
	}))

	_, err := c.FetchArtifacts(context.Background(), CurrentVersion)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/api/v2/products/payments-platform/diagram",
		"/api/v2/products/payments-platform/threats",
		"/api/v2/products/payments-platform/countermeasures",
	}, paths)
}

func TestFetch_ServerErrorIsRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.FetchArtifacts(context.Background(), VersionHandle{ID: "ver-1"})
	require.Error(t, err)
	assert.True(t, modelerrors.IsKind(err, modelerrors.KindFetch))
	assert.True(t, modelerrors.IsRetryable(err))
}

func TestFetch_ClientErrorNotRetryable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.FetchArtifacts(context.Background(), VersionHandle{ID: "ver-1"})
	require.Error(t, err)
	assert.True(t, modelerrors.IsKind(err, modelerrors.KindFetch))
	assert.False(t, modelerrors.IsRetryable(err))
}

func TestFetch_TransportErrorIsRetryable(t *testing.T) {
	c, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := c.FetchArtifacts(context.Background(), VersionHandle{ID: "ver-1"})
	require.Error(t, err)
	assert.True(t, modelerrors.IsRetryable(err))
}

func TestVersionHandle_Label(t *testing.T) {
	assert.Equal(t, "current", CurrentVersion.Label())
	assert.Equal(t, "v1.0", VersionHandle{ID: "ver-1", Name: "v1.0"}.Label())
	assert.Equal(t, "ver-1", VersionHandle{ID: "ver-1"}.Label())
}
