// Package bunsource reads the dialog configuration from a key/value settings
// table through bun.
package bunsource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	dialog "github.com/goliatone/go-auth-dialog"
	"github.com/uptrace/bun"
)

const (
	KeyLocalEnabled          = "security:passport-local:isEnabled"
	KeyLdapEnabled           = "security:passport-ldap:isEnabled"
	KeyRegistrationMode      = "security:registrationMode"
	KeyRegistrationWhiteList = "security:registrationWhiteList"
)

// ProviderKey returns the settings key of a provider's enabled flag.
func ProviderKey(p dialog.Provider) string {
	return "security:passport-" + p.String() + ":isEnabled"
}

// Setting is one row of the settings table.
type Setting struct {
	bun.BaseModel `bun:"table:auth_settings,alias:aset"`

	Key       string    `bun:"key,pk" json:"key"`
	Value     string    `bun:"value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Source implements dialog.ConfigSource on top of the settings table.
type Source struct {
	db *bun.DB
}

func New(db *bun.DB) *Source {
	return &Source{db: db}
}

// CreateTable creates the settings table if it does not exist.
func (s *Source) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Setting)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Put upserts a single setting.
func (s *Source) Put(ctx context.Context, key, value string) error {
	row := &Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Save writes every setting that describes cfg in one transaction.
func (s *Source) Save(ctx context.Context, cfg dialog.AuthConfig) error {
	whiteList := cfg.RegistrationWhiteList
	if whiteList == nil {
		whiteList = []string{}
	}
	encoded, err := json.Marshal(whiteList)
	if err != nil {
		return err
	}

	values := map[string]string{
		KeyLocalEnabled:          strconv.FormatBool(cfg.IsLocalStrategySetup),
		KeyLdapEnabled:           strconv.FormatBool(cfg.IsLdapStrategySetup),
		KeyRegistrationMode:      string(cfg.EffectiveRegistrationMode()),
		KeyRegistrationWhiteList: string(encoded),
	}
	for p, enabled := range cfg.ExternalAuthEnabled.All() {
		values[ProviderKey(p)] = strconv.FormatBool(enabled)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for key, value := range values {
			row := &Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
			_, err := tx.NewInsert().
				Model(row).
				On("CONFLICT (key) DO UPDATE").
				Set("value = EXCLUDED.value").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("save setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// Fetch implements dialog.ConfigSource. Missing keys read as disabled;
// unparsable values are errors.
func (s *Source) Fetch(ctx context.Context) (dialog.AuthConfig, error) {
	var rows []Setting
	if err := s.db.NewSelect().
		Model(&rows).
		Where("key LIKE ?", "security:%").
		Scan(ctx); err != nil {
		return dialog.AuthConfig{}, fmt.Errorf("select auth settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	var (
		cfg dialog.AuthConfig
		err error
	)
	if cfg.IsLocalStrategySetup, err = boolSetting(values, KeyLocalEnabled); err != nil {
		return dialog.AuthConfig{}, err
	}
	if cfg.IsLdapStrategySetup, err = boolSetting(values, KeyLdapEnabled); err != nil {
		return dialog.AuthConfig{}, err
	}

	payload := dialog.ConfigPayload{
		RegistrationMode: strings.TrimSpace(values[KeyRegistrationMode]),
	}
	if raw := strings.TrimSpace(values[KeyRegistrationWhiteList]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload.RegistrationWhiteList); err != nil {
			return dialog.AuthConfig{}, fmt.Errorf("decode %s: %w", KeyRegistrationWhiteList, err)
		}
	}
	if err := payload.Validate(); err != nil {
		return dialog.AuthConfig{}, fmt.Errorf("invalid auth settings: %w", err)
	}

	mode := dialog.RegistrationMode(payload.RegistrationMode)
	if mode == "" {
		mode = dialog.RegistrationClosed
	}
	cfg.RegistrationMode = mode
	cfg.IsRegistrationEnabled = mode != dialog.RegistrationClosed
	if len(payload.RegistrationWhiteList) > 0 {
		cfg.RegistrationWhiteList = payload.RegistrationWhiteList
	}

	for _, p := range dialog.AllProviders() {
		enabled, err := boolSetting(values, ProviderKey(p))
		if err != nil {
			return dialog.AuthConfig{}, err
		}
		cfg.ExternalAuthEnabled = cfg.ExternalAuthEnabled.With(p, enabled)
	}

	return cfg, nil
}

func boolSetting(values map[string]string, key string) (bool, error) {
	raw, ok := values[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return v, nil
}
