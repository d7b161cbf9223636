package i18n

import (
	"testing"

	dialog "github.com/goliatone/go-auth-dialog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestEveryKeyTranslated(t *testing.T) {
	keys := []string{
		dialog.MsgSignIn, dialog.MsgSignUp, dialog.MsgSignUpIsHere, dialog.MsgSignInIsHere,
		dialog.MsgUsernameOrEmail, dialog.MsgPassword, dialog.MsgUserID, dialog.MsgName,
		dialog.MsgEmail, dialog.MsgExternalAuth, dialog.MsgByProviderAccount,
		dialog.MsgRestrictedNotice, dialog.MsgRestrictedDetail, dialog.MsgWhiteListHelp,
		dialog.MsgConfigRetrievalError,
	}
	for tag, entries := range messages {
		for _, key := range keys {
			assert.NotEmpty(t, entries[key], "%s missing %q", tag, key)
		}
	}
}

func TestMatchAcceptLanguage(t *testing.T) {
	c, err := New(language.English)
	require.NoError(t, err)

	assert.Equal(t, language.English, c.Match(""))
	assert.Equal(t, language.English, c.Match("fr-FR,fr;q=0.9"))
	assert.Equal(t, language.Japanese, c.Match("ja-JP,ja;q=0.9,en;q=0.8"))
	assert.Equal(t, language.English, c.Match("en-US"))
	assert.Equal(t, language.English, c.Match(";;;"))
}

func TestFallbackLanguage(t *testing.T) {
	c, err := New(language.Japanese)
	require.NoError(t, err)
	assert.Equal(t, language.Japanese, c.Supported()[0])
	assert.Equal(t, "ログイン", c.Translator("").T(dialog.MsgSignIn))

	c, err = New(language.German)
	require.NoError(t, err)
	assert.Equal(t, language.English, c.Supported()[0])
}

func TestTranslatorFormatsArgs(t *testing.T) {
	c, err := New(language.English)
	require.NoError(t, err)

	en := c.Translator("en")
	assert.Equal(t, "Sign in", en.T(dialog.MsgSignIn))
	assert.Equal(t, "by github Account", en.T(dialog.MsgByProviderAccount, "github"))
	assert.Equal(t, "Admin authorization required.", en.T(dialog.MsgRestrictedNotice))

	ja := c.Translator("ja")
	assert.Equal(t, "github アカウントで", ja.T(dialog.MsgByProviderAccount, "github"))
}

func TestCatalogDrivesView(t *testing.T) {
	c, err := New(language.English)
	require.NoError(t, err)

	cfg := dialog.AuthConfig{
		IsLocalStrategySetup: true,
		ExternalAuthEnabled:  dialog.NewProviderSet(dialog.ProviderGoogle),
	}
	view := dialog.BuildView(dialog.NewRenderPolicy(cfg, dialog.PageContext{}), c.Translator("ja"), dialog.FormActions{})

	assert.Equal(t, "ログイン", view.Text["sign_in"])
	require.Len(t, view.Providers, 1)
	assert.Equal(t, "google アカウントで", view.Providers[0].Caption)
}
