// Package i18n translates the dialog's message keys with golang.org/x/text.
package i18n

import (
	"strings"

	dialog "github.com/goliatone/go-auth-dialog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var messages = map[language.Tag]map[string]string{
	language.English: {
		dialog.MsgSignIn:               "Sign in",
		dialog.MsgSignUp:               "Sign up",
		dialog.MsgSignUpIsHere:         "Sign up is here",
		dialog.MsgSignInIsHere:         "Sign in is here",
		dialog.MsgUsernameOrEmail:      "Username or E-mail",
		dialog.MsgPassword:             "Password",
		dialog.MsgUserID:               "User ID",
		dialog.MsgName:                 "Name",
		dialog.MsgEmail:                "Email",
		dialog.MsgExternalAuth:         "External Auth",
		dialog.MsgByProviderAccount:    "by %s Account",
		dialog.MsgRestrictedNotice:     "Admin authorization required.",
		dialog.MsgRestrictedDetail:     "Once an administrator approves your registration, you will be notified by email.",
		dialog.MsgWhiteListHelp:        "Only email addresses matching the following can register.",
		dialog.MsgConfigRetrievalError: "Authentication settings could not be loaded. Please try again later.",
	},
	language.Japanese: {
		dialog.MsgSignIn:               "ログイン",
		dialog.MsgSignUp:               "新規登録",
		dialog.MsgSignUpIsHere:         "新規登録はこちら",
		dialog.MsgSignInIsHere:         "ログインはこちら",
		dialog.MsgUsernameOrEmail:      "ユーザー名またはメールアドレス",
		dialog.MsgPassword:             "パスワード",
		dialog.MsgUserID:               "ユーザーID",
		dialog.MsgName:                 "名前",
		dialog.MsgEmail:                "メールアドレス",
		dialog.MsgExternalAuth:         "外部認証",
		dialog.MsgByProviderAccount:    "%s アカウントで",
		dialog.MsgRestrictedNotice:     "管理者の承認が必要です。",
		dialog.MsgRestrictedDetail:     "管理者が登録を承認すると、メールでお知らせします。",
		dialog.MsgWhiteListHelp:        "以下に一致するメールアドレスのみ登録できます。",
		dialog.MsgConfigRetrievalError: "認証設定を読み込めませんでした。しばらくしてから再度お試しください。",
	},
}

// Catalog resolves translators per request. It implements dialog.Localizer.
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	tags     []language.Tag
	fallback language.Tag
}

// New builds the catalog. fallback is used when nothing in Accept-Language
// matches; it must be one of the supported languages or English is used.
func New(fallback language.Tag) (*Catalog, error) {
	tags := []language.Tag{language.English, language.Japanese}
	if !containsTag(tags, fallback) {
		fallback = language.English
	}

	// the matcher prefers its first tag on ties
	ordered := append([]language.Tag{fallback}, without(tags, fallback)...)

	builder := catalog.NewBuilder(catalog.Fallback(fallback))
	for tag, entries := range messages {
		for key, msg := range entries {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}

	return &Catalog{
		builder:  builder,
		matcher:  language.NewMatcher(ordered),
		tags:     ordered,
		fallback: fallback,
	}, nil
}

// Supported returns the languages with translations, fallback first.
func (c *Catalog) Supported() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Match returns the supported language for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	if strings.TrimSpace(acceptLanguage) == "" {
		return c.fallback
	}
	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return c.fallback
	}
	_, idx, confidence := c.matcher.Match(desired...)
	if confidence == language.No || idx < 0 || idx >= len(c.tags) {
		return c.fallback
	}
	return c.tags[idx]
}

// Translator implements dialog.Localizer.
func (c *Catalog) Translator(acceptLanguage string) dialog.Translator {
	return c.For(c.Match(acceptLanguage))
}

// For returns a translator for tag.
func (c *Catalog) For(tag language.Tag) dialog.Translator {
	return printer{p: message.NewPrinter(tag, message.Catalog(c.builder))}
}

type printer struct {
	p *message.Printer
}

func (t printer) T(key string, args ...any) string {
	return t.p.Sprintf(key, args...)
}

func containsTag(tags []language.Tag, tag language.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func without(tags []language.Tag, tag language.Tag) []language.Tag {
	out := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
