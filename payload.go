package dialog

import (
	"errors"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ConfigPayload is the JSON document the backend serves for the dialog.
type ConfigPayload struct {
	IsLocalStrategySetup        bool            `json:"isLocalStrategySetup"`
	IsLdapStrategySetup         bool            `json:"isLdapStrategySetup"`
	IsRegistrationEnabled       bool            `json:"isRegistrationEnabled"`
	RegistrationMode            string          `json:"registrationMode,omitempty"`
	RegistrationWhiteList       []string        `json:"registrationWhiteList"`
	ObjOfIsExternalAuthEnableds map[string]bool `json:"objOfIsExternalAuthEnableds"`
}

// NewConfigPayload encodes cfg for the wire. Every known provider is listed.
func NewConfigPayload(cfg AuthConfig) ConfigPayload {
	whiteList := cfg.RegistrationWhiteList
	if whiteList == nil {
		whiteList = []string{}
	}
	return ConfigPayload{
		IsLocalStrategySetup:        cfg.IsLocalStrategySetup,
		IsLdapStrategySetup:         cfg.IsLdapStrategySetup,
		IsRegistrationEnabled:       cfg.IsRegistrationEnabled,
		RegistrationMode:            string(cfg.RegistrationMode),
		RegistrationWhiteList:       slices.Clone(whiteList),
		ObjOfIsExternalAuthEnableds: cfg.ExternalAuthEnabled.Map(),
	}
}

// Validate will run validation rules
func (p ConfigPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.RegistrationMode,
			validation.In(
				string(RegistrationOpen),
				string(RegistrationRestricted),
				string(RegistrationClosed),
			),
		),
		validation.Field(
			&p.RegistrationWhiteList,
			validation.By(nonEmptyEntries),
		),
	)
}

// AuthConfig converts the payload. Provider names outside the known set are
// dropped; they never extend the set.
func (p ConfigPayload) AuthConfig() AuthConfig {
	set := ProviderSet{}
	for name, enabled := range p.ObjOfIsExternalAuthEnableds {
		if provider, ok := ParseProvider(name); ok {
			set = set.With(provider, enabled)
		}
	}

	var whiteList []string
	if len(p.RegistrationWhiteList) > 0 {
		whiteList = append(whiteList, p.RegistrationWhiteList...)
	}

	return AuthConfig{
		IsLocalStrategySetup:  p.IsLocalStrategySetup,
		IsLdapStrategySetup:   p.IsLdapStrategySetup,
		IsRegistrationEnabled: p.IsRegistrationEnabled,
		RegistrationMode:      RegistrationMode(p.RegistrationMode),
		RegistrationWhiteList: whiteList,
		ExternalAuthEnabled:   set,
	}
}

func nonEmptyEntries(value any) error {
	entries, _ := value.([]string)
	for _, entry := range entries {
		if strings.TrimSpace(entry) == "" {
			return errors.New("must not contain empty entries")
		}
	}
	return nil
}
