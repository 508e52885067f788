package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/config"
	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

// Client removes authentication identities from the identity provider.
// DeleteIdentity is idempotent: an already-absent identity is success.
type Client interface {
	DeleteIdentity(ctx context.Context, userID string) error
}

type httpClient struct {
	logger       *zap.Logger
	baseURL      string
	serviceToken string
	http         *http.Client
}

func NewClient(logger *zap.Logger, cfg *config.Config) Client {
	return &httpClient{
		logger:       logger,
		baseURL:      cfg.Identity.BaseURL,
		serviceToken: cfg.Identity.ServiceToken,
		http:         &http.Client{Timeout: cfg.Identity.Timeout},
	}
}

func (c *httpClient) DeleteIdentity(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/admin/v1/identities/%s", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build identity delete request")
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return internalerrors.NewTransientError("identity delete", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// absence is success
		return nil
	case resp.StatusCode >= 500:
		return internalerrors.NewTransientError("identity delete",
			errors.Errorf("identity provider returned %d", resp.StatusCode))
	default:
		return errors.Errorf("identity provider rejected deletion of %s with status %d", userID, resp.StatusCode)
	}
}
