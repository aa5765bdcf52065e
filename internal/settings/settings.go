// Package settings loads CLI defaults for goldfinch.
//
// Values come from, lowest precedence first: built-in defaults, a
// .goldfinch.yaml file, and GOLDFINCH_* environment variables. Command line
// flags override all of them; that merge happens in the commands.
//
// The config file is looked up from the working directory upwards and the
// search stops at the module root (the first directory holding go.mod).
package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/wowselim/goldfinch/goldfinchgen/schema"
	"github.com/wowselim/goldfinch/internal/errors"
)

// FileName is the project config file.
const FileName = ".goldfinch.yaml"

// EnvPrefix prefixes every environment variable, e.g. GOLDFINCH_PROVIDER.
const EnvPrefix = "GOLDFINCH"

// Keys.
const (
	KeyProvider   = "provider"
	KeyVisibility = "visibility"
	KeyPlacement  = "placement"
	KeyTags       = "tags"
	KeyVerbose    = "verbose"
)

// Settings are the defaults a goldfinch command starts from.
type Settings struct {
	Provider   string                `mapstructure:"provider" yaml:"provider,omitempty" validate:"omitempty,oneof=source reflection"`
	Visibility schema.VisibilityMode `mapstructure:"visibility" yaml:"visibility,omitempty" validate:"omitempty,oneof=public internal inherit"`
	Placement  schema.Placement      `mapstructure:"placement" yaml:"placement,omitempty" validate:"omitempty,oneof=top nested"`
	Tags       []string              `mapstructure:"tags" yaml:"tags,omitempty"`
	Verbose    bool                  `mapstructure:"verbose" yaml:"verbose,omitempty"`
}

// Defaults returns s as generation defaults. Empty values stay empty so the
// generator's own defaults apply.
func (s *Settings) Defaults() schema.GenerationConfig {
	return schema.GenerationConfig{
		Visibility: s.Visibility,
		Placement:  s.Placement,
	}
}

// SetDefaults configures built-in values. Visibility and placement are left
// unset on purpose: the generator owns those defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProvider, "source")
	v.SetDefault(KeyVisibility, "")
	v.SetDefault(KeyPlacement, "")
	v.SetDefault(KeyTags, []string{})
	v.SetDefault(KeyVerbose, false)
}

// New returns a viper instance with defaults and environment binding, and
// the project config file merged in when one is found from dir.
func New(dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path := FindConfig(dir); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
	}
	return v, nil
}

// Load reads settings for a command running in dir.
func Load(dir string) (*Settings, error) {
	v, err := New(dir)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper decodes and validates settings from v.
func LoadWithViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := schema.ValidateStruct(s); err != nil {
		source := "settings"
		if f := v.ConfigFileUsed(); f != "" {
			source = f
		}
		return nil, errors.WithHintf(errors.Wrapf(err, "%s", source),
			"check %s and the %s_* environment variables", FileName, EnvPrefix)
	}
	return &s, nil
}

// FindConfig walks up from dir looking for FileName and returns its absolute
// path, or "" if there is none. The search does not leave the module.
func FindConfig(dir string) string {
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
