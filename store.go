package dialog

import (
	"context"
	"sync/atomic"
)

// Snapshot is an immutable view of the store at one point in time.
type Snapshot struct {
	Config        AuthConfig
	RetrieveError string
	Retrieved     bool
}

// ConfigStore holds the authentication configuration for the lifetime of the
// process. It is populated by RetrieveData, usually once at startup, and read
// by every dialog render.
type ConfigStore struct {
	source  ConfigSource
	logger  Logger
	metrics *Metrics
	current atomic.Pointer[Snapshot]
}

// StoreOption configures a ConfigStore.
type StoreOption func(*ConfigStore) *ConfigStore

// WithStoreLogger sets the logger that receives retrieval failures.
func WithStoreLogger(l Logger) StoreOption {
	return func(s *ConfigStore) *ConfigStore {
		if l != nil {
			s.logger = l
		}
		return s
	}
}

// WithStoreMetrics records retrieval outcomes.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *ConfigStore) *ConfigStore {
		s.metrics = m
		return s
	}
}

// NewConfigStore creates a store in its fail closed default state.
func NewConfigStore(source ConfigSource, opts ...StoreOption) *ConfigStore {
	s := &ConfigStore{source: source}
	for _, opt := range opts {
		if opt != nil {
			s = opt(s)
		}
	}
	s.logger = resolveLogger("dialog.store", s.logger)
	s.current.Store(&Snapshot{})
	return s
}

// RetrieveData performs one fetch against the source. On success the stored
// configuration is replaced and the retrieve error cleared. On failure the
// previous flags are kept, the retrieve error is set and the failure is
// logged. The store never retries on its own.
func (s *ConfigStore) RetrieveData(ctx context.Context) (AuthConfig, error) {
	if s.source == nil {
		return s.fail(wrapError(ErrConfigRetrieval, ErrSourceMissing, nil))
	}

	cfg, err := s.source.Fetch(ctx)
	if err != nil {
		return s.fail(wrapError(ErrConfigRetrieval, err, nil))
	}

	cfg = cfg.Clone()
	s.current.Store(&Snapshot{
		Config:    cfg,
		Retrieved: true,
	})
	s.metrics.observeFetch(nil)

	s.logger.Debug("authentication configuration retrieved",
		"local", cfg.IsLocalStrategySetup,
		"ldap", cfg.IsLdapStrategySetup,
		"registration", cfg.IsRegistrationEnabled,
		"external", cfg.ExternalAuthEnabled.Any(),
	)

	return cfg.Clone(), nil
}

func (s *ConfigStore) fail(err error) (AuthConfig, error) {
	msg := errorMessage(err)

	// a concurrent success must not be rolled back to the older config
	var next *Snapshot
	for {
		prev := s.current.Load()
		next = &Snapshot{RetrieveError: msg}
		if prev != nil {
			next.Config = prev.Config.Clone()
			next.Retrieved = prev.Retrieved
		}
		if s.current.CompareAndSwap(prev, next) {
			break
		}
	}
	s.metrics.observeFetch(err)

	s.logger.Error("authentication configuration retrieval failed",
		"error", err,
		"text_code", TextCodeConfigRetrievalFailed,
	)

	return next.Config.Clone(), err
}

// Snapshot returns the current state. The returned value is a copy.
func (s *ConfigStore) Snapshot() Snapshot {
	cur := s.current.Load()
	if cur == nil {
		return Snapshot{}
	}
	out := *cur
	out.Config = cur.Config.Clone()
	return out
}

// Config returns the current configuration.
func (s *ConfigStore) Config() AuthConfig {
	return s.Snapshot().Config
}

// RetrieveError returns the message of the last failed retrieval, empty after
// a success.
func (s *ConfigStore) RetrieveError() string {
	return s.Snapshot().RetrieveError
}
