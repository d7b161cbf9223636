package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required for stateless mode")
)

const (
	// DefaultTokenLength is the number of random bytes in a token nonce.
	DefaultTokenLength = 32
	// DefaultContextKey is where the middleware stores the token in locals.
	DefaultContextKey = "csrf_token"
	// DefaultFormFieldName is the hidden field both dialog forms submit.
	DefaultFormFieldName = "_csrf"
	// DefaultHeaderName is accepted for script driven submissions.
	DefaultHeaderName = "X-CSRF-Token"
	// SessionLocalsKey is read to bind tokens to a session.
	SessionLocalsKey = "session_id"
)

// Config defines the configuration for the CSRF middleware.
type Config struct {
	// Skip defines a function to skip the middleware.
	Skip func(router.Context) bool

	// TokenLength is the nonce length in bytes.
	TokenLength int

	// ContextKey is the locals key for the token. The field and header names
	// are stored under ContextKey+"_field" and ContextKey+"_header".
	ContextKey string

	FormFieldName string
	HeaderName    string

	// Storage switches to stored tokens. When nil tokens are stateless and
	// signed with SecureKey.
	Storage Storage

	ErrorHandler   router.ErrorHandler
	SuccessHandler router.HandlerFunc

	// SafeMethods are not validated.
	SafeMethods []string

	// Expiration bounds token lifetime.
	Expiration time.Duration

	// SecureKey signs stateless tokens; at least 32 bytes.
	SecureKey []byte
}

// Storage stores tokens per session key.
type Storage interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

// New creates the CSRF middleware. Safe requests receive a token in locals;
// unsafe requests must echo it back through the form field or header.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := getOrGenerateToken(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return cfg.SuccessHandler(ctx)
			}

			if err := validateToken(ctx, cfg, token); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// TokenFromContext returns the token and form field name the middleware put
// in locals. The field falls back to DefaultFormFieldName.
func TokenFromContext(ctx router.Context, contextKey string) (token, field string) {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}
	if v, ok := ctx.Locals(contextKey).(string); ok {
		token = v
	}
	field = DefaultFormFieldName
	if v, ok := ctx.Locals(contextKey + "_field").(string); ok && v != "" {
		field = v
	}
	return token, field
}

func getOrGenerateToken(ctx router.Context, cfg Config) (string, error) {
	if cfg.Storage == nil {
		return generateStatelessToken(ctx, cfg)
	}

	sessionKey := getSessionKey(ctx)
	if token, err := cfg.Storage.Get(sessionKey); err == nil && token != "" {
		return token, nil
	}

	token, err := generateToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}
	if err := cfg.Storage.Set(sessionKey, token, cfg.Expiration); err != nil {
		return "", err
	}
	return token, nil
}

func validateToken(ctx router.Context, cfg Config, expected string) error {
	received := extractToken(ctx, cfg)
	if received == "" {
		return ErrTokenMissing
	}

	if cfg.Storage == nil {
		return validateStatelessToken(ctx, cfg, received)
	}

	if expected == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Stateless tokens are base64(timestamp:nonce:session:hmac).
func generateStatelessToken(ctx router.Context, cfg Config) (string, error) {
	if len(cfg.SecureKey) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce, err := generateToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", time.Now().UTC().Unix(), nonce, getSessionKey(ctx))
	token := payload + ":" + sign(cfg.SecureKey, payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateStatelessToken(ctx router.Context, cfg Config, token string) error {
	if len(cfg.SecureKey) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	issuedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	want := sign(cfg.SecureKey, strings.Join(parts[:3], ":"))
	if !hmac.Equal([]byte(parts[3]), []byte(want)) {
		return ErrTokenMismatch
	}

	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(getSessionKey(ctx))) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 && time.Now().UTC().After(time.Unix(issuedAt, 0).Add(cfg.Expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func sign(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := ctx.FormValue(cfg.FormFieldName); token != "" {
		return token
	}
	return ctx.Header(cfg.HeaderName)
}

// getSessionKey binds tokens to the session when one is known and falls back
// to the client address otherwise.
func getSessionKey(ctx router.Context) string {
	if id, ok := ctx.Locals(SessionLocalsKey).(string); ok && id != "" {
		return "csrf_" + id
	}
	return "csrf_ip_" + ctx.IP()
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey, cfg.Storage)
	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case ErrTokenExpired:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF configuration error")
	}
}

func initializeSecureKey(current []byte, storage Storage) []byte {
	if storage != nil {
		return current
	}
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
