package external

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// DiscoverOIDC fetches the issuer's discovery document and returns its
// authorization and token endpoints.
func DiscoverOIDC(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := discover(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, err
	}
	return provider.Endpoint(), nil
}

// NewOIDCConfig builds an OAuth2 client for an OIDC issuer and the verifier
// for the id tokens it issues to clientID.
func NewOIDCConfig(ctx context.Context, issuer, clientID, clientSecret, redirectURL string, scopes []string) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	provider, err := discover(ctx, issuer)
	if err != nil {
		return nil, nil, err
	}
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
	verifier := provider.VerifierContext(context.WithoutCancel(ctx), &oidc.Config{ClientID: clientID})
	return cfg, verifier, nil
}

func discover(ctx context.Context, issuer string) (*oidc.Provider, error) {
	provider, err := oidc.NewProvider(ctx, strings.TrimRight(issuer, "/"))
	if err != nil {
		return nil, providerError(ErrDiscoveryFailed, "oidc", err)
	}
	return provider, nil
}
