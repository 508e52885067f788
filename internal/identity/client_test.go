package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/config"
	internalerrors "github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/identity"
)

func newClient(baseURL string) identity.Client {
	return identity.NewClient(zap.NewNop(), &config.Config{
		Identity: config.IdentityConfig{
			BaseURL:      baseURL,
			ServiceToken: "service-secret",
			Timeout:      time.Second,
		},
	})
}

func TestClient_DeleteIdentity(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(server.URL)
	require.NoError(t, client.DeleteIdentity(context.Background(), "alice"))

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/admin/v1/identities/alice", gotPath)
	assert.Equal(t, "Bearer service-secret", gotAuth)
}

func TestClient_AbsentIdentityIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(server.URL)
	assert.NoError(t, client.DeleteIdentity(context.Background(), "ghost"))
}

func TestClient_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newClient(server.URL)
	err := client.DeleteIdentity(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, internalerrors.IsTransient(err))
}

func TestClient_RejectionIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newClient(server.URL)
	err := client.DeleteIdentity(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, internalerrors.IsTransient(err))
}

func TestClient_ConnectionFailureIsTransient(t *testing.T) {
	client := newClient("http://127.0.0.1:1")

	err := client.DeleteIdentity(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, internalerrors.IsTransient(err))
}
