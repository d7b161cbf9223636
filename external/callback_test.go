package external

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/coreos/go-oidc/v3/oidc/oidctest"
	"github.com/gofiber/fiber/v2"
	dialog "github.com/goliatone/go-auth-dialog"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer issues accessToken for any code and records the verifier it
// was sent.
type tokenServer struct {
	mu       sync.Mutex
	verifier string
	code     string
}

func (s *tokenServer) sent() (code, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code, s.verifier
}

func (s *tokenServer) handle(extra func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.code = r.PostForm.Get("code")
		s.verifier = r.PostForm.Get("code_verifier")
		s.mu.Unlock()

		body := map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if extra != nil {
			for k, v := range extra() {
				body[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

func beginState(t *testing.T, initiator *OAuth2Initiator, providerID string) (state, challenge string) {
	t.Helper()
	redirect, err := initiator.Begin(context.Background(), providerID)
	require.NoError(t, err)
	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	return u.Query().Get("state"), u.Query().Get("code_challenge")
}

func requireTextCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr), "expected a go-errors error, got %T", err)
	assert.Equal(t, code, richErr.TextCode)
}

func newProfileProvider(t *testing.T) (*OAuth2Initiator, *tokenServer) {
	t.Helper()
	tokens := &tokenServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokens.handle(nil))
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octo@example.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	initiator := NewOAuth2Initiator(testStateManager())
	initiator.Register(dialog.ProviderGitHub, &oauth2.Config{
		ClientID:     "gh-client",
		ClientSecret: "gh-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		},
		RedirectURL: "https://dialog.test/login/external/github/callback",
	}, WithProfileURL(srv.URL+"/user"))

	return initiator, tokens
}

func TestCompleteExchangesCodeWithSealedVerifier(t *testing.T) {
	initiator, tokens := newProfileProvider(t)
	state, challenge := beginState(t, initiator, "github")

	identity, err := initiator.Complete(context.Background(), "github", "code-1", state)
	require.NoError(t, err)

	assert.Equal(t, Identity{
		Provider: "github",
		Subject:  "583231",
		Username: "octocat",
		Name:     "The Octocat",
		Email:    "octo@example.com",
	}, identity)

	code, verifier := tokens.sent()
	assert.Equal(t, "code-1", code)
	require.NotEmpty(t, verifier)
	assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(verifier))
}

func TestCompleteRejectsTamperedState(t *testing.T) {
	initiator, _ := newProfileProvider(t)
	state, _ := beginState(t, initiator, "github")

	_, err := initiator.Complete(context.Background(), "github", "code-1", state[:len(state)-2]+"xx")
	requireTextCode(t, err, TextCodeInvalidState)
}

func TestCompleteRejectsProviderMismatch(t *testing.T) {
	initiator, _ := newProfileProvider(t)
	initiator.Register(dialog.ProviderGoogle, &oauth2.Config{ClientID: "g"})
	state, _ := beginState(t, initiator, "github")

	_, err := initiator.Complete(context.Background(), "google", "code-1", state)
	requireTextCode(t, err, TextCodeInvalidState)
}

func TestCompleteRequiresCode(t *testing.T) {
	initiator, _ := newProfileProvider(t)
	state, _ := beginState(t, initiator, "github")

	_, err := initiator.Complete(context.Background(), "github", " ", state)
	requireTextCode(t, err, TextCodeMissingCode)
}

func TestCompleteExpiredState(t *testing.T) {
	states := testStateManager()
	initiator := NewOAuth2Initiator(states)
	initiator.Register(dialog.ProviderGitHub, &oauth2.Config{ClientID: "gh"})

	token, err := states.Encode(&State{
		Provider:  "github",
		IssuedAt:  time.Now().Add(-time.Hour).Unix(),
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = initiator.Complete(context.Background(), "github", "code-1", token)
	requireTextCode(t, err, TextCodeStateExpired)
}

func TestCompleteExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
	}))
	t.Cleanup(srv.Close)

	initiator := NewOAuth2Initiator(testStateManager())
	initiator.Register(dialog.ProviderGitHub, &oauth2.Config{
		ClientID: "gh",
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
	})
	state, _ := beginState(t, initiator, "github")

	_, err := initiator.Complete(context.Background(), "github", "code-1", state)
	requireTextCode(t, err, TextCodeExchangeFailed)
}

func TestCompleteVerifiesOIDCIDToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &oidctest.Server{
		PublicKeys: []oidctest.PublicKey{{PublicKey: priv.Public(), KeyID: "key-1", Algorithm: oidc.RS256}},
	}

	var srv *httptest.Server
	tokens := &tokenServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokens.handle(func() map[string]any {
		now := time.Now()
		claims := fmt.Sprintf(
			`{"iss":%q,"aud":"wiki-client","sub":"user-42","iat":%d,"exp":%d,"email":"ada@example.com","name":"Ada Lovelace","preferred_username":"ada"}`,
			srv.URL, now.Unix(), now.Add(time.Hour).Unix(),
		)
		return map[string]any{"id_token": oidctest.SignIDToken(priv, "key-1", oidc.RS256, claims)}
	}))
	mux.Handle("/", idp)
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	idp.SetIssuer(srv.URL)

	cfg, verifier, err := NewOIDCConfig(context.Background(), srv.URL, "wiki-client", "secret",
		"https://dialog.test/login/external/oidc/callback", nil)
	require.NoError(t, err)

	initiator := NewOAuth2Initiator(testStateManager())
	initiator.Register(dialog.ProviderOIDC, cfg, WithIDTokenVerifier(verifier))
	state, challenge := beginState(t, initiator, "oidc")

	identity, err := initiator.Complete(context.Background(), "oidc", "code-9", state)
	require.NoError(t, err)
	assert.Equal(t, Identity{
		Provider: "oidc",
		Subject:  "user-42",
		Username: "ada",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
	}, identity)

	_, sentVerifier := tokens.sent()
	assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(sentVerifier))
}

func TestCompleteRejectsIDTokenForOtherAudience(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &oidctest.Server{
		PublicKeys: []oidctest.PublicKey{{PublicKey: priv.Public(), KeyID: "key-1", Algorithm: oidc.RS256}},
	}

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/token", (&tokenServer{}).handle(func() map[string]any {
		claims := fmt.Sprintf(`{"iss":%q,"aud":"someone-else","sub":"user-42","exp":%d}`,
			srv.URL, time.Now().Add(time.Hour).Unix())
		return map[string]any{"id_token": oidctest.SignIDToken(priv, "key-1", oidc.RS256, claims)}
	}))
	mux.Handle("/", idp)
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	idp.SetIssuer(srv.URL)

	cfg, verifier, err := NewOIDCConfig(context.Background(), srv.URL, "wiki-client", "secret", "", nil)
	require.NoError(t, err)

	initiator := NewOAuth2Initiator(testStateManager())
	initiator.Register(dialog.ProviderOIDC, cfg, WithIDTokenVerifier(verifier))
	state, _ := beginState(t, initiator, "oidc")

	_, err = initiator.Complete(context.Background(), "oidc", "code-9", state)
	requireTextCode(t, err, TextCodeProfileFailed)
}

type stubCompleter struct {
	identity Identity
	err      error
	args     []string
}

func (s *stubCompleter) Complete(_ context.Context, providerID, code, state string) (Identity, error) {
	s.args = []string{providerID, code, state}
	return s.identity, s.err
}

func TestCallbackHandsOffToRegistration(t *testing.T) {
	completer := &stubCompleter{identity: Identity{
		Provider: "github",
		Subject:  "1",
		Username: "ada",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
	}}
	ctrl := NewHTTPController(completer, HTTPConfig{})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "github"
	ctx.QueriesM["code"] = "code-1"
	ctx.QueriesM["state"] = "sealed"
	ctx.On("Context").Return(context.Background())

	var location string
	ctx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		location = args.String(0)
	}).Return(nil)

	require.NoError(t, ctrl.Callback(ctx))
	assert.Equal(t, []string{"github", "code-1", "sealed"}, completer.args)
	assert.Equal(t, "/register?email=ada%40example.com&name=Ada+Lovelace&username=ada", location)
}

func TestCallbackProviderDenied(t *testing.T) {
	completer := &stubCompleter{}
	ctrl := NewHTTPController(completer, HTTPConfig{})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "github"
	ctx.QueriesM["error"] = "access_denied"

	var location string
	ctx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		location = args.String(0)
	}).Return(nil)

	require.NoError(t, ctrl.Callback(ctx))
	assert.Nil(t, completer.args)
	assert.Equal(t, "/login?error=external_auth_failed&oauth_error=access_denied", location)
}

func TestCallbackFailureRedirectsWithTextCode(t *testing.T) {
	ctrl := NewHTTPController(&stubCompleter{err: providerError(ErrInvalidState, "github", nil)}, HTTPConfig{
		ErrorRedirect: "/login",
	})

	ctx := router.NewMockContext()
	ctx.ParamsM["provider"] = "github"
	ctx.On("Context").Return(context.Background())

	var location string
	ctx.On("Redirect", mock.Anything, []int{http.StatusSeeOther}).Run(func(args mock.Arguments) {
		location = args.String(0)
	}).Return(nil)

	require.NoError(t, ctrl.Callback(ctx))
	assert.Equal(t, "/login?text_code="+TextCodeInvalidState, location)
}

func TestCallbackRouteOnFiber(t *testing.T) {
	initiator, _ := newProfileProvider(t)
	ctrl := NewHTTPController(initiator, HTTPConfig{})
	assert.Equal(t, "/login/external/github/callback", ctrl.CallbackPath(dialog.ProviderGitHub))

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App { return fiber.New() })
	ctrl.RegisterRoutes(srv.Router())
	app := srv.WrappedRouter()

	state, _ := beginState(t, initiator, "github")
	q := url.Values{"code": {"code-1"}, "state": {state}}
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login/external/github/callback?"+q.Encode(), nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/register?email=octo%40example.com&name=The+Octocat&username=octocat", resp.Header.Get("Location"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/login/external/github/callback?code=x&state=forged", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?error=external_auth_failed&text_code="+TextCodeInvalidState, resp.Header.Get("Location"))
}
