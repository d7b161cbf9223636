package dialog

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfigRetrievalFailed = "AUTH_CONFIG_RETRIEVAL_FAILED"
	TextCodeSourceMissing         = "AUTH_CONFIG_SOURCE_MISSING"
	TextCodeInitiatorMissing      = "EXTERNAL_AUTH_INITIATOR_MISSING"
	TextCodeExternalAuthFailed    = "EXTERNAL_AUTH_FAILED"
)

// ErrConfigRetrieval is the single failure kind of the configuration store.
// Retrieval failures are clones of it carrying the source error.
var ErrConfigRetrieval = goerrors.New("authentication configuration retrieval failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeConfigRetrievalFailed).
	WithCode(http.StatusServiceUnavailable)

// ErrSourceMissing is returned when a store has no source to fetch from.
var ErrSourceMissing = goerrors.New("authentication configuration source is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeSourceMissing).
	WithCode(http.StatusInternalServerError)

// ErrInitiatorMissing is returned when an external login is requested but no
// initiator was wired.
var ErrInitiatorMissing = goerrors.New("external auth initiator is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeInitiatorMissing).
	WithCode(http.StatusInternalServerError)

// ErrExternalAuthFailed wraps initiator failures.
var ErrExternalAuthFailed = goerrors.New("external auth could not be started", goerrors.CategoryAuth).
	WithTextCode(TextCodeExternalAuthFailed).
	WithCode(goerrors.CodeBadRequest)

// IsConfigRetrievalError reports whether err is a configuration retrieval failure.
func IsConfigRetrievalError(err error) bool {
	return hasTextCode(err, TextCodeConfigRetrievalFailed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == code
	}
	return false
}

// wrapError clones a sentinel and attaches the cause plus metadata.
func wrapError(base *goerrors.Error, err error, meta map[string]any) error {
	if base == nil {
		return err
	}

	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode == base.TextCode {
		return richErr
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
		if meta == nil {
			meta = map[string]any{}
		}
		meta["error"] = err.Error()
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// errorMessage renders a human readable message for a failure.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if richErr.Source != nil {
			return richErr.Message + ": " + richErr.Source.Error()
		}
		return richErr.Message
	}
	return err.Error()
}
