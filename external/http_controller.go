package external

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	dialog "github.com/goliatone/go-auth-dialog"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	DefaultCallbackPrefix = "/login/external"
	DefaultErrorRedirect  = "/login?error=external_auth_failed"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Completer redeems the code of a provider callback.
type Completer interface {
	Complete(ctx context.Context, providerID, code, state string) (Identity, error)
}

// HandoffFunc receives the identity of a finished external login and writes
// the response.
type HandoffFunc func(ctx router.Context, identity Identity) error

// HTTPConfig configures the callback controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/login/external")
	PathPrefix string

	// ErrorRedirect is where failed callbacks land
	ErrorRedirect string

	// Handoff continues the flow once the identity is known
	// (default: RegistrationHandoff("/register"))
	Handoff HandoffFunc

	Logger dialog.Logger
}

// HTTPController serves the provider callbacks of OAuth2Initiator logins.
type HTTPController struct {
	completer Completer
	config    HTTPConfig
}

func NewHTTPController(completer Completer, cfg HTTPConfig) *HTTPController {
	if completer == nil {
		panic("external: NewHTTPController requires a Completer")
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultCallbackPrefix
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = DefaultErrorRedirect
	}
	if cfg.Handoff == nil {
		cfg.Handoff = RegistrationHandoff("/register")
	}
	if cfg.Logger == nil {
		cfg.Logger = dialog.NopLogger()
	}
	return &HTTPController{completer: completer, config: cfg}
}

// CallbackPath returns the callback route of provider p.
func (c *HTTPController) CallbackPath(p dialog.Provider) string {
	return strings.TrimRight(c.config.PathPrefix, "/") + "/" + p.String() + "/callback"
}

// RegisterRoutes registers the callback route.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get(strings.TrimRight(c.config.PathPrefix, "/")+"/:provider/callback", c.Callback).
		SetName("dialog.external.callback")
}

// Callback handles the provider redirect back to the dialog.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerID := ctx.Param("provider")

	if errCode := ctx.Query("error"); errCode != "" {
		c.config.Logger.Warn("external provider denied login",
			"provider", providerID,
			"error", errCode,
			"description", ctx.Query("error_description"),
		)
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "oauth_error", errCode), http.StatusSeeOther)
	}

	identity, err := c.completer.Complete(ctx.Context(), providerID, ctx.Query("code"), ctx.Query("state"))
	if err != nil {
		c.config.Logger.Error("external auth callback failed", "provider", providerID, "error", err)
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "text_code", textCode(err)), http.StatusSeeOther)
	}

	c.config.Logger.Info("external identity resolved", "provider", identity.Provider, "subject", identity.Subject)
	return c.config.Handoff(ctx, identity)
}

// RegistrationHandoff sends the browser to the registration side of the
// dialog with the identity as prefill.
func RegistrationHandoff(registerPath string) HandoffFunc {
	return func(ctx router.Context, identity Identity) error {
		target := registerPath
		for _, kv := range [][2]string{
			{"username", identity.Username},
			{"name", identity.Name},
			{"email", identity.Email},
		} {
			if kv[1] != "" {
				target = appendQueryParam(target, kv[0], kv[1])
			}
		}
		return ctx.Redirect(target, http.StatusSeeOther)
	}
}

func textCode(err error) string {
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return "EXTERNAL_AUTH_FAILED"
}

func appendQueryParam(rawURL, key, value string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
