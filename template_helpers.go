package dialog

import (
	"maps"
	"strings"

	"github.com/goliatone/go-auth-dialog/middleware/csrf"
	"github.com/goliatone/go-router"
)

// TemplateFuncs returns the dialog template functions. They are registered
// as engine globals by NewViewEngine; render data must stay serializable.
//
//	{{ provider_icon("github") }}
//	{% if is_provider("oidc") %}...{% endif %}
func TemplateFuncs() map[string]any {
	return map[string]any{
		"provider_icon": providerIcon,
		"is_provider":   isProvider,
	}
}

// TemplateHelpers returns global data for templates that embed or link to
// the dialog.
//
//	<a href="/login?mode={{ dialog_modes.register }}">
//	{{ csrf_field|safe }}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		"dialog_modes": map[string]string{
			"login":    ModeLoggingIn.String(),
			"register": ModeRegistering.String(),
		},
		"dialog_providers": providerNames(),
	}

	maps.Copy(helpers, csrf.TemplateHelpers(nil, csrf.DefaultContextKey))
	return helpers
}

// TemplateHelpersWithRouter returns TemplateHelpers with the CSRF values the
// middleware stored on ctx.
func TemplateHelpersWithRouter(ctx router.Context) map[string]any {
	helpers := TemplateHelpers()
	maps.Copy(helpers, csrf.TemplateHelpers(ctx, csrf.DefaultContextKey))
	return helpers
}

// TemplateHelpersForPage returns TemplateHelpers with the CSRF values of page.
func TemplateHelpersForPage(page PageContext) map[string]any {
	helpers := TemplateHelpers()
	maps.Copy(helpers, csrf.HelpersFor(page.CSRFToken, page.CSRFField, csrf.DefaultHeaderName))
	return helpers
}

// CSRFTokenSource reads the anti-forgery token and its form field for a
// request.
type CSRFTokenSource func(ctx router.Context) (token, field string)

// MiddlewareTokenSource reads the token the csrf middleware put in locals.
func MiddlewareTokenSource(ctx router.Context) (token, field string) {
	return csrf.TokenFromContext(ctx, csrf.DefaultContextKey)
}

// CookieTokenSource reads a token the hosting backend issued as a cookie.
// An empty field means DefaultCSRFField.
func CookieTokenSource(cookie, field string) CSRFTokenSource {
	if field == "" {
		field = DefaultCSRFField
	}
	return func(ctx router.Context) (string, string) {
		return ctx.Cookies(cookie), field
	}
}

// PageContextFromRouter assembles the page values the dialog needs: the CSRF
// token from locals and registration prefill from the query string.
func PageContextFromRouter(ctx router.Context) PageContext {
	return pageContext(ctx, MiddlewareTokenSource)
}

func pageContext(ctx router.Context, tokens CSRFTokenSource) PageContext {
	if tokens == nil {
		tokens = MiddlewareTokenSource
	}
	token, field := tokens(ctx)
	return PageContext{
		CSRFToken: token,
		CSRFField: field,
		Username:  strings.TrimSpace(ctx.Query("username")),
		Name:      strings.TrimSpace(ctx.Query("name")),
		Email:     strings.TrimSpace(ctx.Query("email")),
	}
}

func providerIcon(id string) string {
	return "fa fa-" + strings.ToLower(strings.TrimSpace(id))
}

func isProvider(id string) bool {
	_, ok := ParseProvider(id)
	return ok
}

func providerNames() []string {
	out := make([]string, 0, len(providerOrder))
	for _, p := range AllProviders() {
		out = append(out, p.String())
	}
	return out
}
