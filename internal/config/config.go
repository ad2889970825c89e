// Package config reads campwatch's settings once at startup into an
// immutable value that is passed to every component.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/brensch/campwatch/internal/ridb"
)

// Facility is one entry of the facility registry: a campground name and its
// recreation.gov asset id.
type Facility struct {
	Name string `json:"name" validate:"required"`
	ID   string `json:"id" validate:"required,numeric"`
}

// DefaultFacilities is the registry used when no facilities file is configured.
var DefaultFacilities = []Facility{
	{Name: "Lodgepole", ID: "232461"},
	{Name: "Upper Pines", ID: "232447"},
	{Name: "Lower Pines", ID: "232450"},
	{Name: "North Pines", ID: "232449"},
}

// SMS configures the email-to-SMS gateway notifier.
type SMS struct {
	Phone    string `validate:"omitempty,numeric"`
	Gateway  string `validate:"required_with=Phone"`
	SMTPHost string `validate:"required_with=Phone"`
	SMTPPort int    `validate:"min=0,max=65535"`
	Username string `validate:"required_with=Phone"`
	Password string `validate:"required_with=Phone"`
}

// Enabled reports whether a destination phone number is configured.
func (s SMS) Enabled() bool { return s.Phone != "" }

// Discord configures the Discord channel notifier.
type Discord struct {
	Token     string
	ChannelID string `validate:"required_with=Token"`
}

type Config struct {
	// APIKey is the static RIDB key. Only commands that read campsite
	// metadata require it; see RequireAPIKey.
	APIKey string

	Facilities []Facility `validate:"required,min=1,dive"`

	MonthDelay     time.Duration `validate:"gte=0"`
	IterationDelay time.Duration `validate:"gte=0"`
	RequestTimeout time.Duration `validate:"gt=0"`

	RIDBBaseURL         string `validate:"omitempty,url"`
	AvailabilityBaseURL string `validate:"omitempty,url"`

	// DBPath enables the DuckDB lookup log when set.
	DBPath string
	// WebAddr enables the status server when set.
	WebAddr string

	SMS      SMS
	SNSPhone string `validate:"omitempty,e164"`
	Discord  Discord
}

// Default returns the built-in configuration before the environment is applied.
func Default() Config {
	facilities := make([]Facility, len(DefaultFacilities))
	copy(facilities, DefaultFacilities)
	return Config{
		Facilities:     facilities,
		MonthDelay:     time.Second,
		IterationDelay: 2 * time.Second,
		RequestTimeout: 15 * time.Second,
		SMS: SMS{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
	}
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", slog.Any("err", err))
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	cfg.APIKey = strings.TrimSpace(getenv("RECREATION_GOV_KEY"))
	cfg.RIDBBaseURL = getenv("RIDB_BASE_URL")
	cfg.AvailabilityBaseURL = getenv("AVAILABILITY_BASE_URL")
	cfg.DBPath = getenv("DB_PATH")
	cfg.WebAddr = getenv("WEB_ADDR")

	var err error
	if cfg.MonthDelay, err = envDuration(getenv, "MONTH_DELAY", cfg.MonthDelay); err != nil {
		return Config{}, err
	}
	if cfg.IterationDelay, err = envDuration(getenv, "ITERATION_DELAY", cfg.IterationDelay); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = envDuration(getenv, "REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return Config{}, err
	}

	if path := getenv("CAMPWATCH_FACILITIES"); path != "" {
		cfg.Facilities, err = LoadFacilities(path)
		if err != nil {
			return Config{}, err
		}
	}

	cfg.SMS.Phone = getenv("SMS_PHONE")
	cfg.SMS.Gateway = getenv("SMS_GATEWAY")
	cfg.SMS.Username = getenv("SMS_USERNAME")
	cfg.SMS.Password = getenv("SMS_PASSWORD")
	if v := getenv("SMS_SMTP_HOST"); v != "" {
		cfg.SMS.SMTPHost = v
	}
	if v := getenv("SMS_SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("SMS_SMTP_PORT: %w", err)
		}
		cfg.SMS.SMTPPort = port
	}
	cfg.SNSPhone = getenv("SNS_PHONE_NUMBER")
	cfg.Discord.Token = getenv("DISCORD_TOKEN")
	cfg.Discord.ChannelID = getenv("DISCORD_CHANNEL_ID")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags and the facility registry for duplicates.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := map[string]bool{}
	for _, f := range c.Facilities {
		if seen[f.Name] {
			return fmt.Errorf("invalid config: duplicate facility name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// RequireAPIKey fails with ridb.ErrAuth when no key is configured.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: set RECREATION_GOV_KEY", ridb.ErrAuth)
	}
	return nil
}

// Facility looks a facility up by name, case-insensitively.
func (c Config) Facility(name string) (Facility, bool) {
	for _, f := range c.Facilities {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Facility{}, false
}

// LoadFacilities reads a JSON registry file: a list of {"name","id"} objects.
// Ids may be written as strings or numbers.
func LoadFacilities(path string) ([]Facility, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facilities file: %w", err)
	}
	var raw []struct {
		Name string          `json:"name"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse facilities file %s: %w", path, err)
	}
	out := make([]Facility, 0, len(raw))
	for _, r := range raw {
		id := strings.Trim(strings.TrimSpace(string(r.ID)), `"`)
		out = append(out, Facility{Name: r.Name, ID: id})
	}
	return out, nil
}

func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
