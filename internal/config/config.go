package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// SupportedConfigVersion is the only config schema this build reads.
const SupportedConfigVersion = "1"

// Config represents the complete configuration structure
type Config struct {
	Version  string         `yaml:"version" default:"1"`
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Theme    ThemeConfig    `yaml:"theme"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Wizard   WizardConfig   `yaml:"wizard"`
	Features FeaturesConfig `yaml:"features"`
	Meta     MetaConfig     `yaml:"meta"`
	Social   SocialConfig   `yaml:"social"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Evermore"`
	Description string `yaml:"description" default:"Online memorials, built together"`
	Tagline     string `yaml:"tagline" default:"A place to remember"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12800"`
}

type ThemeConfig struct {
	Default        string `yaml:"default" default:"light"`
	AllowSwitching bool   `yaml:"allow_switching" default:"true"`
}

type DatabaseConfig struct {
	// Driver selects the draft store backend: "sqlite" or "postgres".
	Driver string `yaml:"driver" default:"sqlite"`
	Path   string `yaml:"path" default:"./evermore.db"`
	// URL is the postgres connection string. The POSTGRES_URL environment
	// variable takes precedence when set.
	URL string `yaml:"url" default:""`
}

type MediaConfig struct {
	// Store selects where uploads land: "local" or "s3".
	Store    string   `yaml:"store" default:"local"`
	LocalDir string   `yaml:"local_dir" default:"./media"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket" default:""`
	Region        string `yaml:"region" default:"us-east-1"`
	Endpoint      string `yaml:"endpoint" default:""`
	PublicBaseURL string `yaml:"public_base_url" default:""`
}

type WizardConfig struct {
	AutosaveDebounceMs int  `yaml:"autosave_debounce_ms" default:"2000"`
	SessionTTLMinutes  int  `yaml:"session_ttl_minutes" default:"120"`
	LivePreview        bool `yaml:"live_preview" default:"true"`
}

type FeaturesConfig struct {
	Authentication AuthConfig      `yaml:"authentication"`
	Guestbook      GuestbookConfig `yaml:"guestbook"`
	Donations      FeatureFlag     `yaml:"donations"`
	Search         FeatureFlag     `yaml:"search"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

type GuestbookConfig struct {
	Enabled           bool   `yaml:"enabled" default:"true"`
	DefaultModeration string `yaml:"default_moderation" default:"pre"`
}

type FeatureFlag struct {
	Enabled bool `yaml:"enabled" default:"false"`
}

type MetaConfig struct {
	Author   string   `yaml:"author" default:""`
	Keywords []string `yaml:"keywords" default:"memorial,obituary,tribute"`
	Favicon  string   `yaml:"favicon" default:"/static/favicon.ico"`
}

type SocialConfig struct {
	Facebook  string `yaml:"facebook" default:""`
	Instagram string `yaml:"instagram" default:""`
	Email     string `yaml:"email" default:""`
}

var AppConfig *Config

// SiteName is safe to call before LoadConfig; templates and tests use
// it without a loaded config.
func SiteName() string {
	if AppConfig != nil {
		return AppConfig.Site.Name
	}
	return "Evermore"
}

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Version != "" && config.Version != SupportedConfigVersion {
		return fmt.Errorf("unsupported configuration version %q (want %q)", config.Version, SupportedConfigVersion)
	}

	AppConfig = config
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
