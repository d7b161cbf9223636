package dialog

import (
	"context"
	"iter"
	"strings"
)

// Logger is the structured logger used across the dialog packages. It matches
// the method set of glog.Logger so named glog loggers can be passed directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Provider identifies an external identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
	ProviderTwitter  Provider = "twitter"
	ProviderOIDC     Provider = "oidc"
	ProviderSAML     Provider = "saml"
)

// providerOrder is the closed provider set in display order.
var providerOrder = [...]Provider{
	ProviderGoogle,
	ProviderGitHub,
	ProviderFacebook,
	ProviderTwitter,
	ProviderOIDC,
	ProviderSAML,
}

// AllProviders returns every known provider in display order.
func AllProviders() []Provider {
	out := make([]Provider, len(providerOrder))
	copy(out, providerOrder[:])
	return out
}

// ParseProvider resolves a provider name, ignoring case and surrounding space.
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	return p, p.IsKnown()
}

// IsKnown reports whether p belongs to the closed provider set.
func (p Provider) IsKnown() bool {
	return p.index() >= 0
}

func (p Provider) String() string {
	return string(p)
}

func (p Provider) index() int {
	for i, known := range providerOrder {
		if known == p {
			return i
		}
	}
	return -1
}

// ProviderSet is a fixed-key record of provider enablement flags. The zero
// value has every provider disabled.
type ProviderSet struct {
	enabled [len(providerOrder)]bool
}

// NewProviderSet returns a set with the given providers enabled. Unknown
// providers are ignored.
func NewProviderSet(enabled ...Provider) ProviderSet {
	var set ProviderSet
	for _, p := range enabled {
		set = set.With(p, true)
	}
	return set
}

// With returns a copy of the set with the flag for p replaced. Unknown
// providers leave the set untouched.
func (s ProviderSet) With(p Provider, enabled bool) ProviderSet {
	if i := p.index(); i >= 0 {
		s.enabled[i] = enabled
	}
	return s
}

// Enabled reports whether p is known and enabled.
func (s ProviderSet) Enabled(p Provider) bool {
	i := p.index()
	return i >= 0 && s.enabled[i]
}

// Any reports whether at least one provider is enabled.
func (s ProviderSet) Any() bool {
	for _, on := range s.enabled {
		if on {
			return true
		}
	}
	return false
}

// All yields every provider with its flag, in display order.
func (s ProviderSet) All() iter.Seq2[Provider, bool] {
	return func(yield func(Provider, bool) bool) {
		for i, p := range providerOrder {
			if !yield(p, s.enabled[i]) {
				return
			}
		}
	}
}

// Map returns the flags keyed by provider name, used for the JSON wire shape.
func (s ProviderSet) Map() map[string]bool {
	out := make(map[string]bool, len(providerOrder))
	for p, on := range s.All() {
		out[string(p)] = on
	}
	return out
}

// DialogMode is the local UI mode of the dialog.
type DialogMode int

const (
	ModeLoggingIn DialogMode = iota
	ModeRegistering
)

// ParseMode maps the URL form of a mode. Anything unrecognised is LoggingIn.
func ParseMode(raw string) DialogMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "register", "registering", "signup":
		return ModeRegistering
	default:
		return ModeLoggingIn
	}
}

func (m DialogMode) String() string {
	if m == ModeRegistering {
		return "register"
	}
	return "login"
}

// RegistrationMode is the wiki's self registration policy.
type RegistrationMode string

const (
	RegistrationOpen       RegistrationMode = "Open"
	RegistrationRestricted RegistrationMode = "Restricted"
	RegistrationClosed     RegistrationMode = "Closed"
)

// AuthConfig mirrors the authentication capabilities declared by the server.
// It is replaced wholesale on every successful retrieval.
type AuthConfig struct {
	IsLocalStrategySetup  bool
	IsLdapStrategySetup   bool
	IsRegistrationEnabled bool
	RegistrationMode      RegistrationMode
	RegistrationWhiteList []string
	ExternalAuthEnabled   ProviderSet
}

// EffectiveRegistrationMode falls back to the registration flag when the
// server did not declare a mode.
func (c AuthConfig) EffectiveRegistrationMode() RegistrationMode {
	if c.RegistrationMode != "" {
		return c.RegistrationMode
	}
	if c.IsRegistrationEnabled {
		return RegistrationOpen
	}
	return RegistrationClosed
}

// Clone returns a deep copy so snapshots never share the whitelist slice.
func (c AuthConfig) Clone() AuthConfig {
	if c.RegistrationWhiteList != nil {
		c.RegistrationWhiteList = append([]string(nil), c.RegistrationWhiteList...)
	}
	return c
}

// DefaultCSRFField is the form field that carries the anti-forgery token.
const DefaultCSRFField = "_csrf"

// PageContext holds the values the hosting page supplies for one render.
type PageContext struct {
	CSRFToken string
	CSRFField string
	Username  string
	Name      string
	Email     string
}

// ConfigSource retrieves the authentication configuration from the backend.
type ConfigSource interface {
	Fetch(ctx context.Context) (AuthConfig, error)
}

// ConfigSourceFunc adapts a function to ConfigSource.
type ConfigSourceFunc func(ctx context.Context) (AuthConfig, error)

func (f ConfigSourceFunc) Fetch(ctx context.Context) (AuthConfig, error) {
	return f(ctx)
}

// Redirect is where the browser should go to start an external login.
type Redirect struct {
	URL      string
	Provider string
}

// ExternalAuthInitiator starts an external login for a provider id.
type ExternalAuthInitiator interface {
	Begin(ctx context.Context, providerID string) (Redirect, error)
}

// ExternalAuthInitiatorFunc adapts a function to ExternalAuthInitiator.
type ExternalAuthInitiatorFunc func(ctx context.Context, providerID string) (Redirect, error)

func (f ExternalAuthInitiatorFunc) Begin(ctx context.Context, providerID string) (Redirect, error) {
	return f(ctx, providerID)
}
