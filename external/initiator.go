// Package external starts external logins for the dialog's provider buttons.
package external

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	dialog "github.com/goliatone/go-auth-dialog"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const DefaultPassportPrefix = "/passport"

// PathInitiator redirects to a backend route per provider, e.g.
// /passport/github. The backend owns the OAuth exchange.
type PathInitiator struct {
	Prefix string
}

func (p PathInitiator) Begin(_ context.Context, providerID string) (dialog.Redirect, error) {
	prefix := strings.TrimRight(p.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPassportPrefix
	}
	return dialog.Redirect{
		URL:      prefix + "/" + url.PathEscape(providerID),
		Provider: providerID,
	}, nil
}

// OAuth2Initiator builds authorization URLs for directly configured clients.
// Every redirect carries a sealed state with a PKCE verifier that Complete
// uses to redeem the code.
type OAuth2Initiator struct {
	mu      sync.RWMutex
	clients map[dialog.Provider]*client
	state   StateManager
}

type client struct {
	config     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	profileURL string
}

// ClientOption configures how Complete reads the identity of a provider.
type ClientOption func(*client)

// WithIDTokenVerifier reads the identity from the verified id_token of the
// token response instead of a profile endpoint.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) ClientOption {
	return func(c *client) {
		c.verifier = v
	}
}

// WithProfileURL overrides the profile endpoint queried after the exchange.
func WithProfileURL(u string) ClientOption {
	return func(c *client) {
		c.profileURL = u
	}
}

func NewOAuth2Initiator(state StateManager) *OAuth2Initiator {
	return &OAuth2Initiator{
		clients: map[dialog.Provider]*client{},
		state:   state,
	}
}

// Register sets the client used for p.
func (o *OAuth2Initiator) Register(p dialog.Provider, cfg *oauth2.Config, opts ...ClientOption) {
	c := &client{config: cfg, profileURL: DefaultProfileURL(p)}
	for _, opt := range opts {
		opt(c)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.clients[p] = c
}

// Providers reports which providers have a client.
func (o *OAuth2Initiator) Providers() dialog.ProviderSet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	set := dialog.ProviderSet{}
	for p := range o.clients {
		set = set.With(p, true)
	}
	return set
}

func (o *OAuth2Initiator) client(p dialog.Provider) (*client, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.clients[p]
	if !ok || c == nil || c.config == nil {
		return nil, false
	}
	return c, true
}

func (o *OAuth2Initiator) Begin(_ context.Context, providerID string) (dialog.Redirect, error) {
	provider, _ := dialog.ParseProvider(providerID)

	c, ok := o.client(provider)
	if !ok {
		return dialog.Redirect{}, providerError(ErrProviderNotConfigured, providerID, nil)
	}

	verifier := oauth2.GenerateVerifier()
	token, err := o.state.Encode(&State{
		Provider:     provider.String(),
		CodeVerifier: verifier,
		RedirectURL:  c.config.RedirectURL,
	})
	if err != nil {
		return dialog.Redirect{}, err
	}

	return dialog.Redirect{
		URL:      c.config.AuthCodeURL(token, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)),
		Provider: provider.String(),
	}, nil
}

// Complete finishes a login started by Begin: it opens the state, redeems
// code with the sealed PKCE verifier and reads the external identity.
func (o *OAuth2Initiator) Complete(ctx context.Context, providerID, code, stateToken string) (Identity, error) {
	provider, _ := dialog.ParseProvider(providerID)

	if strings.TrimSpace(code) == "" {
		return Identity{}, providerError(ErrMissingCode, providerID, nil)
	}

	state, err := o.state.Decode(stateToken)
	if err != nil {
		return Identity{}, providerError(stateError(err), providerID, err)
	}
	if state.Provider != provider.String() {
		return Identity{}, providerError(ErrInvalidState, providerID, errors.New("provider mismatch"))
	}

	c, ok := o.client(provider)
	if !ok {
		return Identity{}, providerError(ErrProviderNotConfigured, providerID, nil)
	}

	token, err := c.config.Exchange(ctx, code, oauth2.VerifierOption(state.CodeVerifier))
	if err != nil {
		return Identity{}, providerError(ErrExchangeFailed, providerID, err)
	}

	var identity Identity
	if c.verifier != nil {
		identity, err = identityFromIDToken(ctx, c.verifier, token)
	} else {
		identity, err = fetchProfile(ctx, c.config.Client(ctx, token), c.profileURL)
	}
	if err != nil {
		return Identity{}, providerError(ErrProfileFailed, providerID, err)
	}

	identity.Provider = provider.String()
	return identity, nil
}

func stateError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode == TextCodeStateExpired {
		return ErrStateExpired
	}
	return ErrInvalidState
}

// Chain tries each initiator in order and moves on only when a provider is
// not configured.
type Chain []dialog.ExternalAuthInitiator

func (c Chain) Begin(ctx context.Context, providerID string) (dialog.Redirect, error) {
	err := error(providerError(ErrProviderNotConfigured, providerID, nil))
	for _, initiator := range c {
		if initiator == nil {
			continue
		}
		var redirect dialog.Redirect
		redirect, err = initiator.Begin(ctx, providerID)
		if err == nil {
			return redirect, nil
		}
		if !isNotConfigured(err) {
			return dialog.Redirect{}, err
		}
	}
	return dialog.Redirect{}, err
}

func isNotConfigured(err error) bool {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == TextCodeProviderNotConfigured
	}
	return false
}

// DefaultEndpoint returns the well known OAuth2 endpoint of a provider.
// OIDC endpoints come from discovery and SAML has none.
func DefaultEndpoint(p dialog.Provider) (oauth2.Endpoint, bool) {
	switch p {
	case dialog.ProviderGoogle:
		return endpoints.Google, true
	case dialog.ProviderGitHub:
		return endpoints.GitHub, true
	case dialog.ProviderFacebook:
		return endpoints.Facebook, true
	default:
		return oauth2.Endpoint{}, false
	}
}

// DefaultScopes returns the scopes requested when none are configured.
func DefaultScopes(p dialog.Provider) []string {
	switch p {
	case dialog.ProviderGoogle, dialog.ProviderOIDC:
		return []string{"openid", "profile", "email"}
	case dialog.ProviderGitHub:
		return []string{"read:user", "user:email"}
	case dialog.ProviderFacebook:
		return []string{"email", "public_profile"}
	default:
		return nil
	}
}
