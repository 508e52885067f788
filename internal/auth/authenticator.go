package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/nidoapp/nido-api/internal/config"
	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

// Identity is the verified caller. Subject is the account identifier every
// owned document is keyed by.
type Identity struct {
	Subject string
	Email   string
}

type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (Identity, error)
}

type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCAuthenticator(ctx context.Context, cfg *config.Config) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Auth.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create oidc provider")
	}

	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID}),
	}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, internalerrors.NewUnauthenticatedError("missing bearer token")
	}

	idToken, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, internalerrors.NewUnauthenticatedError("invalid bearer token")
	}

	var claims struct {
		Email string `json:"email"`
	}
	_ = idToken.Claims(&claims)

	return Identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
	}, nil
}
