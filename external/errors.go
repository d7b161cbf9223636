package external

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotConfigured = "EXTERNAL_PROVIDER_NOT_CONFIGURED"
	TextCodeInvalidState          = "EXTERNAL_INVALID_STATE"
	TextCodeStateExpired          = "EXTERNAL_STATE_EXPIRED"
	TextCodeDiscoveryFailed       = "EXTERNAL_OIDC_DISCOVERY_FAILED"
	TextCodeMissingCode           = "EXTERNAL_MISSING_CODE"
	TextCodeExchangeFailed        = "EXTERNAL_TOKEN_EXCHANGE_FAILED"
	TextCodeProfileFailed         = "EXTERNAL_PROFILE_FAILED"
)

// ErrProviderNotConfigured is returned when no client is set up for a provider.
var ErrProviderNotConfigured = errors.New("external provider not configured", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotConfigured).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrDiscoveryFailed is returned when an OIDC issuer cannot be discovered.
var ErrDiscoveryFailed = errors.New("oidc discovery failed", errors.CategoryOperation).
	WithTextCode(TextCodeDiscoveryFailed).
	WithCode(errors.CodeBadRequest)

// ErrMissingCode is returned when a callback arrives without an authorization code.
var ErrMissingCode = errors.New("authorization code missing", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingCode).
	WithCode(errors.CodeBadRequest)

// ErrExchangeFailed is returned when the provider rejects the code exchange.
var ErrExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(errors.CodeUnauthorized)

// ErrProfileFailed is returned when the identity cannot be read from the
// provider after a successful exchange.
var ErrProfileFailed = errors.New("failed to read external identity", errors.CategoryExternal).
	WithTextCode(TextCodeProfileFailed).
	WithCode(errors.CodeUnauthorized)

func providerError(base *errors.Error, provider string, err error) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	meta := map[string]any{"provider": provider}
	if err != nil {
		clone.Source = err
		meta["error"] = err.Error()
	}
	return clone.WithMetadata(meta)
}
