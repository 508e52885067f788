package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/api/middleware"
	"github.com/nidoapp/nido-api/internal/auth"
	"github.com/nidoapp/nido-api/internal/deletion"
	"github.com/nidoapp/nido-api/internal/errors"
	"github.com/nidoapp/nido-api/internal/store/storetest"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, rawToken string) (auth.Identity, error) {
	if rawToken != "valid-token" {
		return auth.Identity{}, errors.NewUnauthenticatedError("bad token")
	}
	return auth.Identity{Subject: "alice"}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	jobs := deletion.NewJobStore(logger, storetest.NewFakeClient())
	service := deletion.NewService(logger, jobs)
	handler := NewAccountHandler(logger, service)

	router := gin.New()
	router.Use(middleware.ErrorMapper(logger))
	api := router.Group("/api/v1", middleware.Auth(stubAuthenticator{}))
	api.POST("/account/deletion", handler.RequestDeletion)
	api.GET("/account/deletion", handler.DeletionStatus)
	return router
}

func doRequest(router *gin.Engine, method, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, "/api/v1/account/deletion", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAccountHandler_RequestDeletion(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "valid-token")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["accepted"])
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "alice", body["jobId"])
}

func TestAccountHandler_RequestDeletionIsIdempotent(t *testing.T) {
	router := newTestRouter(t)

	first := doRequest(router, http.MethodPost, "valid-token")
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := doRequest(router, http.MethodPost, "valid-token")
	assert.Equal(t, http.StatusAccepted, second.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, true, body["accepted"])
}

func TestAccountHandler_StatusNotRequested(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "valid-token")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_requested", body["status"])
	assert.NotContains(t, body, "completedAt")
}

func TestAccountHandler_StatusAfterRequest(t *testing.T) {
	router := newTestRouter(t)

	doRequest(router, http.MethodPost, "valid-token")

	w := doRequest(router, http.MethodGet, "valid-token")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "alice", body["jobId"])
	assert.Contains(t, body, "updatedAt")
}

func TestAccountHandler_RejectsMissingToken(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountHandler_RejectsInvalidToken(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
