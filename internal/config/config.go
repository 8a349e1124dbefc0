// Package config loads runtime settings from the environment, an optional
// .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"keyword_responder/internal/normalize"
	"keyword_responder/internal/session"
)

// DefaultAdminPassword is used when ADMIN_PASSWORD is unset. Serving with it
// logs a warning.
const DefaultAdminPassword = "change-me"

// Keys are the environment variable names, also used as viper keys.
const (
	KeyAdminPassword      = "ADMIN_PASSWORD"
	KeyWordsFile          = "WORDS_FILE"
	KeyModerationFile     = "MODERATION_FILE"
	KeyChannelSecret      = "LINE_CHANNEL_SECRET"
	KeyChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	KeyPort               = "PORT"
	KeyNormalizePolicy    = "NORMALIZE_POLICY"
	KeyCommandUTCOffset   = "COMMAND_UTC_OFFSET_HOURS"
	KeyDefaultReply       = "DEFAULT_REPLY"
	KeyWatchFiles         = "WATCH_FILES"
	KeySessionTTL         = "SESSION_TTL"
	KeyRedisAddr          = "REDIS_ADDR"
	KeyNATSURL            = "NATS_URL"
	KeyNATSSubject        = "NATS_SUBJECT"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLogFormat          = "LOG_FORMAT"
)

// Config is the resolved runtime configuration.
type Config struct {
	AdminPassword      string
	WordsFile          string
	ModerationFile     string
	ChannelSecret      string
	ChannelAccessToken string
	Port               int
	NormalizePolicy    normalize.Policy
	CommandUTCOffset   int
	DefaultReply       string
	WatchFiles         bool
	SessionTTL         time.Duration
	RedisAddr          string
	NATSURL            string
	NATSSubject        string
	LogLevel           string
	LogFormat          string
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// CommandZone is the fixed zone used by the !time and !date commands.
func (c Config) CommandZone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.CommandUTCOffset), c.CommandUTCOffset*60*60)
}

// UsesDefaultPassword reports whether ADMIN_PASSWORD was left unset.
func (c Config) UsesDefaultPassword() bool {
	return c.AdminPassword == DefaultAdminPassword
}

// LINEEnabled reports whether both LINE credentials are present.
func (c Config) LINEEnabled() bool {
	return c.ChannelSecret != "" && c.ChannelAccessToken != ""
}

// LoadDotEnv reads path (default ".env") into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAdminPassword, DefaultAdminPassword)
	v.SetDefault(KeyWordsFile, "words.json")
	v.SetDefault(KeyModerationFile, "moderation.json")
	v.SetDefault(KeyPort, 5000)
	v.SetDefault(KeyNormalizePolicy, normalize.PolicyExtended.String())
	v.SetDefault(KeyCommandUTCOffset, 3)
	v.SetDefault(KeyWatchFiles, true)
	v.SetDefault(KeySessionTTL, session.DefaultTTL)
	v.SetDefault(KeyNATSSubject, "autoresponder.moderation.flagged")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Load reads a Config from v. SetDefaults must have been called on v.
func Load(v *viper.Viper) (Config, error) {
	policy, err := normalize.ParsePolicy(v.GetString(KeyNormalizePolicy))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AdminPassword:      v.GetString(KeyAdminPassword),
		WordsFile:          strings.TrimSpace(v.GetString(KeyWordsFile)),
		ModerationFile:     strings.TrimSpace(v.GetString(KeyModerationFile)),
		ChannelSecret:      strings.TrimSpace(v.GetString(KeyChannelSecret)),
		ChannelAccessToken: strings.TrimSpace(v.GetString(KeyChannelAccessToken)),
		Port:               v.GetInt(KeyPort),
		NormalizePolicy:    policy,
		CommandUTCOffset:   v.GetInt(KeyCommandUTCOffset),
		DefaultReply:       v.GetString(KeyDefaultReply),
		WatchFiles:         v.GetBool(KeyWatchFiles),
		SessionTTL:         v.GetDuration(KeySessionTTL),
		RedisAddr:          strings.TrimSpace(v.GetString(KeyRedisAddr)),
		NATSURL:            strings.TrimSpace(v.GetString(KeyNATSURL)),
		NATSSubject:        strings.TrimSpace(v.GetString(KeyNATSSubject)),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = DefaultAdminPassword
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and required values.
func (c Config) Validate() error {
	var errs []error
	if c.WordsFile == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyWordsFile))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyPort, c.Port))
	}
	if c.CommandUTCOffset < -12 || c.CommandUTCOffset > 14 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyCommandUTCOffset, c.CommandUTCOffset))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeySessionTTL))
	}
	if (c.ChannelSecret == "") != (c.ChannelAccessToken == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", KeyChannelSecret, KeyChannelAccessToken))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}
