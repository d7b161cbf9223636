package csrf

import (
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSecureKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newMockContextWithBase(method string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method)
	ctx.On("IP").Return("127.0.0.1")
	ctx.On("Locals", DefaultContextKey, mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_field", mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_header", mock.Anything).Return(nil)
	return ctx
}

func TestStatelessTokenValidationSuccess(t *testing.T) {
	key := newTestSecureKey()
	cfg := Config{
		SecureKey: key,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET")
	err := handler(getCtx)
	require.NoError(t, err)

	tokenVal, ok := getCtx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.NotEmpty(t, tokenVal)

	postCtx := newMockContextWithBase("POST")
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	err = handler(postCtx)
	require.NoError(t, err)
	require.True(t, postCtx.NextCalled)
}

func TestStatelessTokenValidationMismatch(t *testing.T) {
	key := newTestSecureKey()
	var captured error
	cfg := Config{
		SecureKey: key,
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET")
	require.NoError(t, handler(getCtx))

	postCtx := newMockContextWithBase("POST")
	postCtx.On("FormValue", DefaultFormFieldName).Return("tampered")

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, captured, ErrTokenMismatch)
}

func TestStatelessTokenExpiration(t *testing.T) {
	key := newTestSecureKey()
	cfg := Config{
		SecureKey:  key,
		Expiration: time.Nanosecond,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}

	handler := New(cfg)(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET")
	require.NoError(t, handler(getCtx))

	tokenVal := getCtx.LocalsMock[DefaultContextKey].(string)

	time.Sleep(time.Millisecond) // ensure token is expired

	postCtx := newMockContextWithBase("POST")
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestShortSecureKeyPanics(t *testing.T) {
	require.Panics(t, func() {
		handler := New(Config{SecureKey: []byte("short")})(func(ctx router.Context) error { return nil })
		handler(newMockContextWithBase("GET"))
	})
}

func TestMissingTokenRejected(t *testing.T) {
	handler := New(Config{
		SecureKey: newTestSecureKey(),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(func(ctx router.Context) error { return nil })

	postCtx := newMockContextWithBase("POST")
	postCtx.On("FormValue", DefaultFormFieldName).Return("")

	err := handler(postCtx)
	require.ErrorIs(t, err, ErrTokenMissing)
	require.False(t, postCtx.NextCalled)
}

func TestHeaderTokenAccepted(t *testing.T) {
	handler := New(Config{
		SecureKey: newTestSecureKey(),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET")
	require.NoError(t, handler(getCtx))
	token := getCtx.LocalsMock[DefaultContextKey].(string)

	postCtx := newMockContextWithBase("POST")
	postCtx.On("FormValue", DefaultFormFieldName).Return("")
	postCtx.HeadersM[DefaultHeaderName] = token

	require.NoError(t, handler(postCtx))
	require.True(t, postCtx.NextCalled)
}

func TestTokenBoundToSession(t *testing.T) {
	handler := New(Config{
		SecureKey: newTestSecureKey(),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET")
	getCtx.LocalsMock[SessionLocalsKey] = "session-a"
	require.NoError(t, handler(getCtx))
	token := getCtx.LocalsMock[DefaultContextKey].(string)

	postCtx := newMockContextWithBase("POST")
	postCtx.LocalsMock[SessionLocalsKey] = "session-b"
	postCtx.On("FormValue", DefaultFormFieldName).Return(token)

	require.ErrorIs(t, handler(postCtx), ErrTokenMismatch)
}

func TestSkipBypassesValidation(t *testing.T) {
	handler := New(Config{
		SecureKey: newTestSecureKey(),
		Skip:      func(router.Context) bool { return true },
	})(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
	require.Nil(t, ctx.LocalsMock[DefaultContextKey])
}

func TestTokenFromContext(t *testing.T) {
	ctx := router.NewMockContext()
	token, field := TokenFromContext(ctx, "")
	require.Empty(t, token)
	require.Equal(t, "_csrf", field)

	ctx.LocalsMock[DefaultContextKey] = "abc"
	ctx.LocalsMock[DefaultContextKey+"_field"] = "authenticity_token"
	token, field = TokenFromContext(ctx, DefaultContextKey)
	require.Equal(t, "abc", token)
	require.Equal(t, "authenticity_token", field)
}

func TestTemplateHelpers(t *testing.T) {
	empty := TemplateHelpers(nil, "")
	require.Equal(t, "", empty["csrf_token"])
	require.Equal(t, `<input type="hidden" name="_csrf" value="">`, empty["csrf_field"])
	require.Equal(t, DefaultHeaderName, empty["csrf_header_name"])

	ctx := router.NewMockContext()
	ctx.LocalsMock[DefaultContextKey] = `a"b`
	helpers := TemplateHelpers(ctx, DefaultContextKey)
	require.Equal(t, `a"b`, helpers["csrf_token"])
	require.Equal(t, `<input type="hidden" name="_csrf" value="a&#34;b">`, helpers["csrf_field"])
	require.Equal(t, `<meta name="csrf-token" content="a&#34;b">`, helpers["csrf_meta"])
}
