package dialog

import (
	"fmt"
	"strings"
)

// Translator resolves display text for a message key.
type Translator interface {
	T(key string, args ...any) string
}

// Localizer picks a Translator for a request's Accept-Language header.
type Localizer interface {
	Translator(acceptLanguage string) Translator
}

type passthroughTranslator struct{}

func (passthroughTranslator) T(key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf(key, args...)
}

// Message keys used by the dialog template.
const (
	MsgSignIn               = "Sign in"
	MsgSignUp               = "Sign up"
	MsgSignUpIsHere         = "Sign up is here"
	MsgSignInIsHere         = "Sign in is here"
	MsgUsernameOrEmail      = "Username or E-mail"
	MsgPassword             = "Password"
	MsgUserID               = "User ID"
	MsgName                 = "Name"
	MsgEmail                = "Email"
	MsgExternalAuth         = "External Auth"
	MsgByProviderAccount    = "by %s Account"
	MsgRestrictedNotice     = "page_register.notice.restricted"
	MsgRestrictedDetail     = "page_register.notice.restricted_defail"
	MsgWhiteListHelp        = "page_register.form_help.email"
	MsgConfigRetrievalError = "page_login.error.config_unavailable"
)

const (
	classFlipped            = "to-flip"
	classExternalCollapsed  = "collapse collapse-external-auth collapse-anchor"
	dataToggleCollapse      = "collapse"
	defaultLoginAction      = "/login"
	defaultRegisterAction   = "/register"
	defaultExternalAuthPath = "/login/external"
)

// ProviderButton is one external sign in button.
type ProviderButton struct {
	ID        string
	IconClass string
	Label     string
	Caption   string
	Href      string
}

// FormActions are the paths the dialog forms and links point at.
type FormActions struct {
	Login        string
	Register     string
	ExternalAuth string
	Dialog       string
}

func (a FormActions) withDefaults() FormActions {
	if a.Login == "" {
		a.Login = defaultLoginAction
	}
	if a.Register == "" {
		a.Register = defaultRegisterAction
	}
	if a.ExternalAuth == "" {
		a.ExternalAuth = defaultExternalAuthPath
	}
	if a.Dialog == "" {
		a.Dialog = a.Login
	}
	return a
}

// View is the fully resolved dialog: every visibility decision and class name
// is computed here so the template only prints.
type View struct {
	Mode        DialogMode
	DialogClass string

	ShowCredentialsForm bool
	ShowLdapBadge       bool

	ShowExternalAuth        bool
	ExternalAuthCollapsible bool
	ExternalAuthClass       string
	ExternalAuthToggle      string
	Providers               []ProviderButton

	ShowRegistrationLink bool
	ShowRegistrationForm bool
	ShowRestrictedNotice bool
	ShowWhiteList        bool
	WhiteList            []string

	CSRFField string
	CSRFToken string

	PrefillUsername string
	PrefillName     string
	PrefillEmail    string

	RetrieveError string

	Actions FormActions
	Text    map[string]string
}

// BuildView resolves the policy into a View.
func BuildView(p *RenderPolicy, t Translator, actions FormActions) View {
	if t == nil {
		t = passthroughTranslator{}
	}
	actions = actions.withDefaults()

	v := View{
		Mode:                 p.Mode(),
		ShowCredentialsForm:  p.ShouldShowCredentialsForm(),
		ShowLdapBadge:        p.ShouldShowLdapBadge(),
		ShowExternalAuth:     p.ShouldShowExternalAuthSection(),
		ShowRegistrationLink: p.ShouldShowRegistrationLink(),
		ShowRegistrationForm: p.ShouldShowRegistrationForm(),
		ShowRestrictedNotice: p.ShouldShowRestrictedNotice(),
		ShowWhiteList:        p.ShouldShowWhiteList(),
		WhiteList:            p.RegistrationWhiteList(),
		CSRFField:            p.CSRFField(),
		CSRFToken:            p.CSRF(),
		Actions:              actions,
	}
	v.PrefillUsername, v.PrefillName, v.PrefillEmail = p.Prefill()
	v.DialogClass = dialogClass(v.Mode)

	if v.ShowExternalAuth {
		v.ExternalAuthCollapsible = p.IsExternalAuthCollapsible()
		if v.ExternalAuthCollapsible {
			v.ExternalAuthClass = classExternalCollapsed
			v.ExternalAuthToggle = dataToggleCollapse
		}
		for provider := range p.EnabledExternalProviders() {
			id := provider.String()
			v.Providers = append(v.Providers, ProviderButton{
				ID:        id,
				IconClass: "fa fa-" + id,
				Label:     t.T(MsgSignIn),
				Caption:   t.T(MsgByProviderAccount, id),
				Href:      strings.TrimRight(actions.ExternalAuth, "/") + "/" + id,
			})
		}
	}

	v.Text = map[string]string{
		"sign_in":            t.T(MsgSignIn),
		"sign_up":            t.T(MsgSignUp),
		"sign_up_is_here":    t.T(MsgSignUpIsHere),
		"sign_in_is_here":    t.T(MsgSignInIsHere),
		"username_or_email":  t.T(MsgUsernameOrEmail),
		"password":           t.T(MsgPassword),
		"user_id":            t.T(MsgUserID),
		"name":               t.T(MsgName),
		"email":              t.T(MsgEmail),
		"external_auth":      t.T(MsgExternalAuth),
		"restricted":         t.T(MsgRestrictedNotice),
		"restricted_detail":  t.T(MsgRestrictedDetail),
		"whitelist_help":     t.T(MsgWhiteListHelp),
		"config_unavailable": t.T(MsgConfigRetrievalError),
	}

	return v
}

// WithRetrieveError attaches the store's last retrieval error for display.
func (v View) WithRetrieveError(msg string) View {
	v.RetrieveError = msg
	return v
}

func dialogClass(mode DialogMode) string {
	classes := []string{"login-dialog", "mx-auto", "flipper"}
	if mode == ModeRegistering {
		classes = append(classes, classFlipped)
	}
	return strings.Join(classes, " ")
}

// ToViewContext flattens the view into plain values for the template engine.
func (v View) ToViewContext() map[string]any {
	providers := make([]map[string]any, 0, len(v.Providers))
	for _, b := range v.Providers {
		providers = append(providers, map[string]any{
			"id":         b.ID,
			"icon_class": b.IconClass,
			"label":      b.Label,
			"caption":    b.Caption,
			"href":       b.Href,
		})
	}

	return map[string]any{
		"mode":         v.Mode.String(),
		"dialog_class": v.DialogClass,
		"credentials": map[string]any{
			"show":       v.ShowCredentialsForm,
			"ldap_badge": v.ShowLdapBadge,
			"action":     v.Actions.Login,
		},
		"external_auth": map[string]any{
			"show":        v.ShowExternalAuth,
			"collapsible": v.ExternalAuthCollapsible,
			"class":       v.ExternalAuthClass,
			"toggle":      v.ExternalAuthToggle,
			"providers":   providers,
		},
		"registration": map[string]any{
			"show_link":       v.ShowRegistrationLink,
			"show_form":       v.ShowRegistrationForm,
			"restricted":      v.ShowRestrictedNotice,
			"show_white_list": v.ShowWhiteList,
			"white_list":      v.WhiteList,
			"action":          v.Actions.Register,
			"username":        v.PrefillUsername,
			"name":            v.PrefillName,
			"email":           v.PrefillEmail,
		},
		"links": map[string]any{
			"register": v.Actions.Dialog + "?mode=" + ModeRegistering.String() + "#register",
			"login":    v.Actions.Dialog + "?mode=" + ModeLoggingIn.String() + "#login",
		},
		"csrf": map[string]any{
			"field": v.CSRFField,
			"token": v.CSRFToken,
		},
		"retrieve_error": v.RetrieveError,
		"text":           v.Text,
	}
}
