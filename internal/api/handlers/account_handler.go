package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/api/middleware"
	"github.com/nidoapp/nido-api/internal/deletion"
	"github.com/nidoapp/nido-api/internal/errors"
)

// AccountHandler exposes the account-deletion endpoints. Callers can only
// act on their own account: the owner id is always the authenticated
// subject, never a request parameter.
type AccountHandler struct {
	logger  *zap.Logger
	service *deletion.Service
}

func NewAccountHandler(logger *zap.Logger, service *deletion.Service) *AccountHandler {
	return &AccountHandler{
		logger:  logger,
		service: service,
	}
}

type requestDeletionResponse struct {
	Accepted bool   `json:"accepted"`
	Status   string `json:"status"`
	JobID    string `json:"jobId"`
}

type deletionStatusResponse struct {
	Status      string     `json:"status"`
	JobID       string     `json:"jobId"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

func (h *AccountHandler) RequestDeletion(c *gin.Context) {
	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("no caller identity"))
		return
	}

	result, err := h.service.RequestDeletion(c.Request.Context(), identity.Subject)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, requestDeletionResponse{
		Accepted: result.Accepted,
		Status:   string(result.Status),
		JobID:    result.JobID,
	})
}

func (h *AccountHandler) DeletionStatus(c *gin.Context) {
	identity, ok := middleware.CallerIdentity(c)
	if !ok {
		c.Error(errors.NewUnauthenticatedError("no caller identity"))
		return
	}

	result, err := h.service.Status(c.Request.Context(), identity.Subject)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, deletionStatusResponse{
		Status:      string(result.Status),
		JobID:       result.JobID,
		UpdatedAt:   result.UpdatedAt,
		CompletedAt: result.CompletedAt,
		LastError:   result.LastError,
	})
}
