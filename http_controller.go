package dialog

import (
	"maps"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterDialogRoutes mounts the dialog pages, the external login entry point
// and, when a config endpoint source is set, the JSON configuration endpoint.
func RegisterDialogRoutes[T any](app router.Router[T], opts ...DialogControllerOption) {
	controller := NewDialogController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("dialog.login.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("dialog.register.get")

	app.Get(strings.TrimRight(controller.Routes.ExternalAuth, "/")+"/:provider", controller.ExternalAuthBegin).
		SetName("dialog.external.get")

	if controller.ConfigSource != nil {
		app.Get(controller.Routes.Config, controller.ConfigShow).
			SetName("dialog.config.get")
	}
}

type DialogControllerRoutes struct {
	Login        string
	Register     string
	ExternalAuth string
	Config       string
}

type DialogController struct {
	Debug        bool
	Logger       Logger
	Store        *ConfigStore
	Initiator    ExternalAuthInitiator
	Localizer    Localizer
	Metrics      *Metrics
	ConfigSource ConfigSource
	Routes       *DialogControllerRoutes
	FormActions  FormActions
	CSRFTokens   CSRFTokenSource
	View         string
	ErrorHandler router.ErrorHandler
}

type DialogControllerOption func(*DialogController) *DialogController

func WithStore(store *ConfigStore) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.Store = store
		return c
	}
}

func WithExternalAuthInitiator(i ExternalAuthInitiator) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.Initiator = i
		return c
	}
}

func WithLocalizer(l Localizer) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.Localizer = l
		return c
	}
}

func WithControllerLogger(l Logger) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerMetrics(m *Metrics) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.Metrics = m
		return c
	}
}

// WithConfigEndpoint serves the source's configuration as JSON so other
// instances can use this one as their backend.
func WithConfigEndpoint(source ConfigSource) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.ConfigSource = source
		return c
	}
}

func WithRoutes(routes DialogControllerRoutes) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		if routes.Login != "" {
			c.Routes.Login = routes.Login
		}
		if routes.Register != "" {
			c.Routes.Register = routes.Register
		}
		if routes.ExternalAuth != "" {
			c.Routes.ExternalAuth = routes.ExternalAuth
		}
		if routes.Config != "" {
			c.Routes.Config = routes.Config
		}
		return c
	}
}

// WithFormActions points the login and registration forms at the backend
// that handles the POSTs. Empty fields post to the dialog's own routes.
func WithFormActions(actions FormActions) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.FormActions = actions
		return c
	}
}

// WithCSRFTokenSource sets where the form token comes from. The default reads
// the locals of the csrf middleware.
func WithCSRFTokenSource(source CSRFTokenSource) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		if source != nil {
			c.CSRFTokens = source
		}
		return c
	}
}

func WithDebug(debug bool) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		c.Debug = debug
		return c
	}
}

func WithErrorHandler(h router.ErrorHandler) DialogControllerOption {
	return func(c *DialogController) *DialogController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

func NewDialogController(opts ...DialogControllerOption) *DialogController {
	c := &DialogController{
		ErrorHandler: defaultErrHandler,
		CSRFTokens:   MiddlewareTokenSource,
		View:         ViewName,
		Routes: &DialogControllerRoutes{
			Login:        defaultLoginAction,
			Register:     defaultRegisterAction,
			ExternalAuth: defaultExternalAuthPath,
			Config:       "/_api/auth-config",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	if c.Store == nil {
		panic("Missing ConfigStore in dialog controller...")
	}

	c.Logger = resolveLogger("dialog.controller", c.Logger)
	return c
}

// LoginShow renders the dialog. ?mode=register opens the registration side.
func (a *DialogController) LoginShow(ctx router.Context) error {
	return a.render(ctx, ParseMode(ctx.Query("mode")))
}

// RegistrationShow renders the dialog on the registration side.
func (a *DialogController) RegistrationShow(ctx router.Context) error {
	return a.render(ctx, ModeRegistering)
}

func (a *DialogController) render(ctx router.Context, mode DialogMode) error {
	snapshot := a.Store.Snapshot()
	page := pageContext(ctx, a.CSRFTokens)

	policy := NewRenderPolicy(snapshot.Config, page,
		WithMode(mode),
		WithPolicyLogger(a.Logger),
	)

	view := BuildView(policy, a.translator(ctx), a.actions()).
		WithRetrieveError(snapshot.RetrieveError)

	a.Metrics.observeRender(mode)

	if a.Debug {
		a.Logger.Debug("rendering auth dialog", "view", print.MaybePrettyJSON(view))
	}

	// the adapter serializes render data, functions live on the engine
	data := TemplateHelpersForPage(page)
	maps.Copy(data, view.ToViewContext())

	return ctx.Render(a.View, router.ViewContext(data))
}

// ExternalAuthBegin starts the external login for :provider and redirects
// the browser to the provider.
func (a *DialogController) ExternalAuthBegin(ctx router.Context) error {
	providerID := ctx.Param("provider")

	policy := NewRenderPolicy(a.Store.Config(), PageContext{},
		WithInitiator(a.Initiator),
		WithPolicyLogger(a.Logger),
	)

	redirect, err := policy.HandleExternalAuthClick(ctx.Context(), providerID)
	if err != nil {
		a.Logger.Error("external auth initiation failed", "provider", providerID, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("external auth initiated", "provider", redirect.Provider)
	return ctx.Redirect(redirect.URL, http.StatusSeeOther)
}

// ConfigShow serves the configuration in the wire format the HTTP source reads.
func (a *DialogController) ConfigShow(ctx router.Context) error {
	cfg, err := a.ConfigSource.Fetch(ctx.Context())
	if err != nil {
		err = wrapError(ErrConfigRetrieval, err, nil)
		a.Logger.Error("auth config endpoint failed", "error", err, "text_code", TextCodeConfigRetrievalFailed)
		return a.ErrorHandler(ctx, err)
	}

	ctx.SetHeader("Cache-Control", "no-store")
	return ctx.JSON(router.StatusOK, NewConfigPayload(cfg))
}

func (a *DialogController) translator(ctx router.Context) Translator {
	if a.Localizer == nil {
		return passthroughTranslator{}
	}
	if t := a.Localizer.Translator(ctx.Header("Accept-Language")); t != nil {
		return t
	}
	return passthroughTranslator{}
}

func (a *DialogController) actions() FormActions {
	actions := FormActions{
		Login:        a.Routes.Login,
		Register:     a.Routes.Register,
		ExternalAuth: a.Routes.ExternalAuth,
		Dialog:       a.Routes.Login,
	}
	if a.FormActions.Login != "" {
		actions.Login = a.FormActions.Login
	}
	if a.FormActions.Register != "" {
		actions.Register = a.FormActions.Register
	}
	return actions
}

func defaultErrHandler(c router.Context, err error) error {
	code := router.StatusInternalServerError
	body := map[string]any{"error": errorMessage(err)}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		if richErr.Code > 0 {
			code = richErr.Code
		}
		body["text_code"] = richErr.TextCode
	}

	return c.JSON(code, body)
}
