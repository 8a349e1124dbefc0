package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"keyword_responder/internal/normalize"
)

func newViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, map[string]any{
		KeyAdminPassword:      "",
		KeyChannelSecret:      "",
		KeyChannelAccessToken: "",
		KeyRedisAddr:          "",
		KeyNATSURL:            "",
		KeyDefaultReply:       "",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 5000 || cfg.Addr() != ":5000" {
		t.Errorf("Port = %d, Addr = %q", cfg.Port, cfg.Addr())
	}
	if cfg.WordsFile != "words.json" || cfg.ModerationFile != "moderation.json" {
		t.Errorf("files = %q, %q", cfg.WordsFile, cfg.ModerationFile)
	}
	if !cfg.UsesDefaultPassword() {
		t.Error("blank ADMIN_PASSWORD should fall back to the default")
	}
	if cfg.NormalizePolicy != normalize.PolicyExtended {
		t.Errorf("NormalizePolicy = %v", cfg.NormalizePolicy)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.LINEEnabled() {
		t.Error("LINE enabled without credentials")
	}
	if !cfg.WatchFiles {
		t.Error("WatchFiles default should be true")
	}

	now := time.Date(2024, 1, 1, 21, 30, 0, 0, time.UTC)
	if got := now.In(cfg.CommandZone()).Format("2006-01-02 15:04"); got != "2024-01-02 00:30" {
		t.Errorf("CommandZone shifted time = %q", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(newViper(t, map[string]any{
		KeyAdminPassword:      "s3cret",
		KeyPort:               "8080",
		KeyNormalizePolicy:    "minimal",
		KeySessionTTL:         "30m",
		KeyChannelSecret:      "sec",
		KeyChannelAccessToken: "tok",
		KeyLogFormat:          "Console",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.AdminPassword != "s3cret" || cfg.UsesDefaultPassword() {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.NormalizePolicy != normalize.PolicyMinimal {
		t.Errorf("NormalizePolicy = %v", cfg.NormalizePolicy)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if !cfg.LINEEnabled() || cfg.LogFormat != "console" {
		t.Errorf("LINEEnabled = %v, LogFormat = %q", cfg.LINEEnabled(), cfg.LogFormat)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv(KeyWordsFile, "/data/replies.yaml")
	t.Setenv(KeyCommandUTCOffset, "0")

	cfg, err := Load(newViper(t, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WordsFile != "/data/replies.yaml" || cfg.CommandUTCOffset != 0 {
		t.Errorf("WordsFile = %q, CommandUTCOffset = %d", cfg.WordsFile, cfg.CommandUTCOffset)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   string
	}{
		{"bad policy", map[string]any{KeyNormalizePolicy: "aggressive"}, "aggressive"},
		{"port", map[string]any{KeyPort: 70000}, KeyPort},
		{"offset", map[string]any{KeyCommandUTCOffset: 20}, KeyCommandUTCOffset},
		{"half credentials", map[string]any{KeyChannelSecret: "sec", KeyChannelAccessToken: ""}, KeyChannelSecret},
		{"log format", map[string]any{KeyLogFormat: "xml"}, KeyLogFormat},
		{"empty words file", map[string]any{KeyWordsFile: " "}, KeyWordsFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.values))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "AUTORESPONDER_DOTENV_TEST"
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q", key, got)
	}
}
