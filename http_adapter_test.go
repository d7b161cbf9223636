package dialog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-dialog/middleware/csrf"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/require"
)

var hiddenCSRF = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

func newDialogApp(t *testing.T, cfg AuthConfig, opts ...DialogControllerOption) *fiber.App {
	t.Helper()
	store := NewConfigStore(staticSource(cfg), WithStoreLogger(NopLogger()))
	_, err := store.RetrieveData(context.Background())
	require.NoError(t, err)

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			Views:             NewViewEngine(),
			PassLocalsToViews: true,
		})
	})

	r := srv.Router()
	r.Use(csrf.New(csrf.Config{SecureKey: []byte("0123456789abcdef0123456789abcdef")}))

	base := []DialogControllerOption{WithStore(store), WithControllerLogger(NopLogger())}
	RegisterDialogRoutes(r, append(base, opts...)...)

	return srv.WrappedRouter()
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestFiberLoginRendersDialog(t *testing.T) {
	app := newDialogApp(t, AuthConfig{
		IsLocalStrategySetup:  true,
		IsRegistrationEnabled: true,
		ExternalAuthEnabled:   NewProviderSet(ProviderGitHub),
	})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	require.Contains(t, body, `id="login-form"`)
	require.Contains(t, body, `action="/login"`)
	require.Contains(t, body, `data-mode="login"`)
	require.Contains(t, body, `href="/login/external/github"`)
	require.NotContains(t, body, `id="register-form"`)

	m := hiddenCSRF.FindStringSubmatch(body)
	require.Len(t, m, 2, "expected a hidden csrf field with a token")
	require.NotEmpty(t, m[1])
}

func TestFiberLoginRegisterModeRendersRegistration(t *testing.T) {
	app := newDialogApp(t, AuthConfig{
		IsLocalStrategySetup:  true,
		IsRegistrationEnabled: true,
	})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/register?mode=register", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Contains(t, body, `id="register-form"`)
	require.Contains(t, body, `data-mode="register"`)
	require.Contains(t, body, "to-flip")

	resp, body = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/login?mode=register", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Contains(t, body, `id="register-form"`)
}

func TestFiberLoginPassesAcceptLanguage(t *testing.T) {
	localizer := &stubLocalizer{}
	app := newDialogApp(t, AuthConfig{IsLocalStrategySetup: true}, WithLocalizer(localizer))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.8")

	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Equal(t, "de-DE,de;q=0.8", localizer.lastHeader)
}

func TestFiberExternalAuthRedirects(t *testing.T) {
	initiator := ExternalAuthInitiatorFunc(func(_ context.Context, providerID string) (Redirect, error) {
		if providerID != ProviderGitHub.String() {
			return Redirect{}, errors.New("provider not configured")
		}
		return Redirect{URL: "https://idp.example/authorize?p=" + providerID}, nil
	})
	app := newDialogApp(t, AuthConfig{ExternalAuthEnabled: NewProviderSet(ProviderGitHub)},
		WithExternalAuthInitiator(initiator))

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/login/external/github", nil))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "https://idp.example/authorize?p=github", resp.Header.Get("Location"))

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/login/external/myspace", nil))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFiberFormsPostToBackend(t *testing.T) {
	app := newDialogApp(t, AuthConfig{IsLocalStrategySetup: true, IsRegistrationEnabled: true},
		WithFormActions(FormActions{
			Login:    "https://wiki.test/login",
			Register: "https://wiki.test/register",
		}),
		WithCSRFTokenSource(CookieTokenSource("wiki_csrf", "")),
	)

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req.AddCookie(&http.Cookie{Name: "wiki_csrf", Value: "backend-issued"})

	resp, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Contains(t, body, `action="https://wiki.test/login"`)
	require.Contains(t, body, `action="https://wiki.test/register"`)
	require.Contains(t, body, `name="_csrf" value="backend-issued"`)
}
