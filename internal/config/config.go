// Package config reads the server settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// Config is the runtime configuration of the portfolio server.
type Config struct {
	Address      string
	Mode         string
	ContentFile  string
	DatabasePath string
	Relay        Relay
	Contact      Contact
	Admin        Admin
}

// Relay selects and configures where contact submissions go.
type Relay struct {
	Kind     string
	Endpoint string
	Timeout  time.Duration
	SMTP     SMTP
}

// SMTP holds mail settings for the smtp relay.
type SMTP struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// Contact tunes the form views.
type Contact struct {
	AutoDismiss   time.Duration
	FormTTL       time.Duration
	SweepInterval time.Duration
	// MaxForms caps the contact views held in memory.
	MaxForms int
}

// Admin holds dashboard credentials.
type Admin struct {
	Username string
	Password string
}

const (
	RelayFormspree = "formspree"
	RelaySMTP      = "smtp"
)

// env maps config keys to the environment variables the site has always used.
var env = map[string]string{
	"port":                   "PORT",
	"mode":                   "GIN_MODE",
	"content_file":           "CONTENT_FILE",
	"database_path":          "DATABASE_PATH",
	"relay.kind":             "RELAY",
	"relay.endpoint":         "FORM_ENDPOINT",
	"relay.timeout":          "FORM_TIMEOUT",
	"smtp.host":              "SMTP_HOST",
	"smtp.port":              "SMTP_PORT",
	"smtp.user":              "SMTP_USER",
	"smtp.pass":              "SMTP_PASS",
	"smtp.to":                "TO_EMAIL",
	"contact.auto_dismiss":   "CONTACT_AUTO_DISMISS",
	"contact.form_ttl":       "CONTACT_FORM_TTL",
	"contact.sweep_interval": "CONTACT_SWEEP_INTERVAL",
	"contact.max_forms":      "CONTACT_MAX_FORMS",
	"admin.username":         "ADMIN_USERNAME",
	"admin.password":         "ADMIN_PASSWORD",
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("mode", "release")
	v.SetDefault("database_path", "portfolio.db")
	v.SetDefault("relay.kind", RelayFormspree)
	v.SetDefault("relay.endpoint", "https://formspree.io/f/mldnqqeb")
	v.SetDefault("relay.timeout", "15s")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("contact.auto_dismiss", "5s")
	v.SetDefault("contact.form_ttl", "1h")
	v.SetDefault("contact.sweep_interval", "5m")
	v.SetDefault("contact.max_forms", 1000)
}

// Load builds the configuration. When file is not empty it is read as YAML
// first; environment variables always win.
func Load(file string) (*Config, error) {
	v := viper.New()
	defaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		Address:      ":" + strings.TrimPrefix(v.GetString("port"), ":"),
		Mode:         v.GetString("mode"),
		ContentFile:  v.GetString("content_file"),
		DatabasePath: v.GetString("database_path"),
		Relay: Relay{
			Kind:     strings.ToLower(v.GetString("relay.kind")),
			Endpoint: v.GetString("relay.endpoint"),
			Timeout:  v.GetDuration("relay.timeout"),
			SMTP: SMTP{
				Host: v.GetString("smtp.host"),
				Port: v.GetString("smtp.port"),
				User: v.GetString("smtp.user"),
				Pass: v.GetString("smtp.pass"),
				To:   v.GetString("smtp.to"),
			},
		},
		Contact: Contact{
			AutoDismiss:   v.GetDuration("contact.auto_dismiss"),
			FormTTL:       v.GetDuration("contact.form_ttl"),
			SweepInterval: v.GetDuration("contact.sweep_interval"),
			MaxForms:      v.GetInt("contact.max_forms"),
		},
		Admin: Admin{
			Username: v.GetString("admin.username"),
			Password: v.GetString("admin.password"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: GIN_MODE must be debug, release or test, got %q", c.Mode)
	}
	switch c.Relay.Kind {
	case RelayFormspree:
		if c.Relay.Endpoint == "" {
			return fmt.Errorf("config: FORM_ENDPOINT is required for the %s relay", RelayFormspree)
		}
	case RelaySMTP:
	default:
		return fmt.Errorf("config: unknown relay %q", c.Relay.Kind)
	}
	if c.Contact.AutoDismiss <= 0 {
		return fmt.Errorf("config: CONTACT_AUTO_DISMISS must be positive")
	}
	if c.Contact.FormTTL <= 0 || c.Contact.SweepInterval <= 0 {
		return fmt.Errorf("config: contact form ttl and sweep interval must be positive")
	}
	if c.Contact.MaxForms <= 0 {
		return fmt.Errorf("config: CONTACT_MAX_FORMS must be positive")
	}
	return nil
}
