package csrf

import (
	"html"

	"github.com/goliatone/go-router"
)

// TemplateHelpers returns template globals for the token stored under
// contextKey. With a nil context the values are empty placeholders.
//
//	{{ csrf_field|safe }}
//	{{ csrf_meta|safe }}
func TemplateHelpers(ctx router.Context, contextKey string) map[string]any {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	token, field := "", DefaultFormFieldName
	header := DefaultHeaderName
	if ctx != nil {
		token, field = TokenFromContext(ctx, contextKey)
		if v, ok := ctx.Locals(contextKey + "_header").(string); ok && v != "" {
			header = v
		}
	}

	return HelpersFor(token, field, header)
}

// HelpersFor returns the template globals for an explicit token.
func HelpersFor(token, field, header string) map[string]any {
	if field == "" {
		field = DefaultFormFieldName
	}
	if header == "" {
		header = DefaultHeaderName
	}

	escaped := html.EscapeString(token)
	return map[string]any{
		"csrf_token":       token,
		"csrf_field_name":  field,
		"csrf_header_name": header,
		"csrf_field":       `<input type="hidden" name="` + html.EscapeString(field) + `" value="` + escaped + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + escaped + `">`,
	}
}
