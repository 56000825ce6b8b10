package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Rodovar-GPS/GPS/internal/storage"
)

// DefaultSettings is the branding used when nothing else is configured.
func DefaultSettings() storage.CompanySettings {
	return storage.CompanySettings{
		Name:            "RODOVAR",
		Slogan:          "Logística Inteligente",
		PrimaryColor:    "#FFD700",
		BackgroundColor: "#121212",
		CardColor:       "#1E1E1E",
		TextColor:       "#F5F5F5",
	}
}

// LoadSettings returns DefaultSettings overlaid with the non-empty fields of
// the YAML file at path. An empty path returns the defaults unchanged.
func LoadSettings(path string) (storage.CompanySettings, error) {
	out := DefaultSettings()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, &ConfigError{Field: "SETTINGS_FILE", Message: err.Error()}
	}

	var file storage.CompanySettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return out, &ConfigError{Field: "SETTINGS_FILE", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	out = MergeSettings(out, file)
	if err := validator.New().Struct(out); err != nil {
		return DefaultSettings(), &ConfigError{Field: "SETTINGS_FILE", Message: err.Error()}
	}
	return out, nil
}

// MergeSettings returns base with every non-empty field of over applied.
func MergeSettings(base, over storage.CompanySettings) storage.CompanySettings {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Name, over.Name)
	set(&base.Slogan, over.Slogan)
	set(&base.LogoURL, over.LogoURL)
	set(&base.PrimaryColor, over.PrimaryColor)
	set(&base.BackgroundColor, over.BackgroundColor)
	set(&base.CardColor, over.CardColor)
	set(&base.TextColor, over.TextColor)
	return base
}
