// Package httpsource fetches the dialog configuration from a backend over
// HTTP using the fiber client.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	dialog "github.com/goliatone/go-auth-dialog"
)

const defaultTimeout = 5 * time.Second

// Source performs a single GET per Fetch. It never retries.
type Source struct {
	url     string
	timeout time.Duration
	headers map[string]string
	logger  dialog.Logger
}

type Option func(*Source) *Source

func WithTimeout(d time.Duration) Option {
	return func(s *Source) *Source {
		if d > 0 {
			s.timeout = d
		}
		return s
	}
}

// WithHeader adds a request header, e.g. an API key for the backend.
func WithHeader(key, value string) Option {
	return func(s *Source) *Source {
		s.headers[key] = value
		return s
	}
}

func WithLogger(l dialog.Logger) Option {
	return func(s *Source) *Source {
		if l != nil {
			s.logger = l
		}
		return s
	}
}

func New(url string, opts ...Option) *Source {
	s := &Source{
		url:     url,
		timeout: defaultTimeout,
		headers: map[string]string{},
		logger:  dialog.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			s = opt(s)
		}
	}
	return s
}

// Fetch implements dialog.ConfigSource. Transport errors, non 200 responses
// and malformed payloads are all returned as errors.
func (s *Source) Fetch(ctx context.Context) (dialog.AuthConfig, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return dialog.AuthConfig{}, err
	}

	agent := fiber.Get(s.url)
	agent.Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	for k, v := range s.headers {
		agent.Set(k, v)
	}

	if err := agent.Parse(); err != nil {
		return dialog.AuthConfig{}, fmt.Errorf("prepare request to %s: %w", s.url, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return dialog.AuthConfig{}, fmt.Errorf("request %s: %w", s.url, errs[0])
	}
	if code != fiber.StatusOK {
		return dialog.AuthConfig{}, fmt.Errorf("request %s: unexpected status %d", s.url, code)
	}

	s.logger.Debug("auth config response received", "url", s.url, "bytes", len(body))

	return Decode(body)
}

// Decode parses and validates a configuration payload.
func Decode(body []byte) (dialog.AuthConfig, error) {
	var payload dialog.ConfigPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return dialog.AuthConfig{}, fmt.Errorf("decode auth config: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return dialog.AuthConfig{}, fmt.Errorf("invalid auth config: %w", err)
	}
	return payload.AuthConfig(), nil
}
