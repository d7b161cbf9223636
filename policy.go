package dialog

import (
	"context"
	"iter"
	"strings"
)

// RenderPolicy decides what the dialog shows for one configuration snapshot,
// one page context and the current mode. All predicates are pure; only
// SwitchMode and HandleExternalAuthClick have effects.
type RenderPolicy struct {
	config    AuthConfig
	page      PageContext
	mode      DialogMode
	initiator ExternalAuthInitiator
	logger    Logger
}

// PolicyOption configures a RenderPolicy.
type PolicyOption func(*RenderPolicy) *RenderPolicy

// WithMode sets the initial mode.
func WithMode(mode DialogMode) PolicyOption {
	return func(p *RenderPolicy) *RenderPolicy {
		p.mode = mode
		return p
	}
}

// WithInitiator sets the collaborator that starts external logins.
func WithInitiator(i ExternalAuthInitiator) PolicyOption {
	return func(p *RenderPolicy) *RenderPolicy {
		p.initiator = i
		return p
	}
}

// WithPolicyLogger sets the policy logger.
func WithPolicyLogger(l Logger) PolicyOption {
	return func(p *RenderPolicy) *RenderPolicy {
		if l != nil {
			p.logger = l
		}
		return p
	}
}

// NewRenderPolicy builds a policy in LoggingIn mode unless WithMode says
// otherwise.
func NewRenderPolicy(cfg AuthConfig, page PageContext, opts ...PolicyOption) *RenderPolicy {
	if page.CSRFField == "" {
		page.CSRFField = DefaultCSRFField
	}
	p := &RenderPolicy{
		config: cfg.Clone(),
		page:   page,
		mode:   ModeLoggingIn,
		logger: NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			p = opt(p)
		}
	}
	return p
}

// ShouldShowCredentialsForm reports whether there is a local or LDAP strategy
// for username and password inputs to authenticate against.
func (p *RenderPolicy) ShouldShowCredentialsForm() bool {
	return p.config.IsLocalStrategySetup || p.config.IsLdapStrategySetup
}

// ShouldShowLdapBadge reports whether the username input is marked as LDAP.
func (p *RenderPolicy) ShouldShowLdapBadge() bool {
	return p.config.IsLdapStrategySetup
}

// ShouldShowExternalAuthSection reports whether any external provider is enabled.
func (p *RenderPolicy) ShouldShowExternalAuthSection() bool {
	return p.config.ExternalAuthEnabled.Any()
}

// IsExternalAuthCollapsible reports whether the external section is tucked
// behind a toggle. It is expanded only when it is the sole sign in method.
func (p *RenderPolicy) IsExternalAuthCollapsible() bool {
	return p.ShouldShowExternalAuthSection() && p.ShouldShowCredentialsForm()
}

// EnabledExternalProviders yields enabled providers in display order. The
// sequence is recomputed on every iteration.
func (p *RenderPolicy) EnabledExternalProviders() iter.Seq[Provider] {
	set := p.config.ExternalAuthEnabled
	return func(yield func(Provider) bool) {
		for provider, enabled := range set.All() {
			if !enabled {
				continue
			}
			if !yield(provider) {
				return
			}
		}
	}
}

// ShouldShowRegistrationLink reports whether the "sign up" link is rendered.
func (p *RenderPolicy) ShouldShowRegistrationLink() bool {
	return p.config.IsRegistrationEnabled
}

// ShouldShowRegistrationForm reports whether the registration side is active.
func (p *RenderPolicy) ShouldShowRegistrationForm() bool {
	return p.config.IsRegistrationEnabled && p.mode == ModeRegistering
}

// ShouldShowRestrictedNotice reports whether the registration form carries
// the notice that new accounts need approval.
func (p *RenderPolicy) ShouldShowRestrictedNotice() bool {
	return p.ShouldShowRegistrationForm() &&
		p.config.EffectiveRegistrationMode() == RegistrationRestricted
}

// ShouldShowWhiteList reports whether allow-listed patterns are displayed.
// They are guidance only and never gate submission.
func (p *RenderPolicy) ShouldShowWhiteList() bool {
	return p.ShouldShowRegistrationForm() && len(p.config.RegistrationWhiteList) > 0
}

// RegistrationWhiteList returns the allow-list in display order.
func (p *RenderPolicy) RegistrationWhiteList() []string {
	return append([]string(nil), p.config.RegistrationWhiteList...)
}

// Mode returns the current mode.
func (p *RenderPolicy) Mode() DialogMode {
	return p.mode
}

// SwitchMode flips between the login and registration sides. Configuration
// is not refetched.
func (p *RenderPolicy) SwitchMode(target DialogMode) {
	p.mode = target
}

// CSRF returns the anti-forgery token exactly as the page supplied it.
func (p *RenderPolicy) CSRF() string {
	return p.page.CSRFToken
}

// CSRFField returns the hidden field name used by both forms.
func (p *RenderPolicy) CSRFField() string {
	return p.page.CSRFField
}

// Prefill returns the registration values supplied by the page.
func (p *RenderPolicy) Prefill() (username, name, email string) {
	return p.page.Username, p.page.Name, p.page.Email
}

// HandleExternalAuthClick hands the clicked provider id to the initiator.
// Unknown ids are passed through unchanged; the backend is the authority.
func (p *RenderPolicy) HandleExternalAuthClick(ctx context.Context, providerID string) (Redirect, error) {
	if p.initiator == nil {
		return Redirect{}, ErrInitiatorMissing
	}

	if _, known := ParseProvider(providerID); !known {
		p.logger.Debug("external auth requested for unknown provider", "provider", providerID)
	}

	redirect, err := p.initiator.Begin(ctx, providerID)
	if err != nil {
		return Redirect{}, wrapError(ErrExternalAuthFailed, err, map[string]any{
			"provider": providerID,
		})
	}
	if strings.TrimSpace(redirect.Provider) == "" {
		redirect.Provider = providerID
	}
	return redirect, nil
}
