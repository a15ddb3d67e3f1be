package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:    AppConfig{Environment: "development"},
			Logger: LoggerConfig{Level: "info"},
			Library: LibraryConfig{
				DataPath: "/tmp/pagemark",
			},
			Bridge: BridgeConfig{
				QueryTimeout:         5 * time.Second,
				ProgressWritesPerSec: 2,
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := valid()
	cfg.App.Environment = "prod"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid environment accepted")
	}

	cfg = valid()
	cfg.Logger.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid log level accepted")
	}

	cfg = valid()
	cfg.Library.DataPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty data path accepted")
	}

	cfg = valid()
	cfg.Bridge.QueryTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero query timeout accepted")
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{Library: LibraryConfig{DataPath: "/data/pm"}}

	if got := cfg.DatabasePath(); got != filepath.Join("/data/pm", "library.db") {
		t.Errorf("DatabasePath: %s", got)
	}
	if got := cfg.PayloadPath(); got != filepath.Join("/data/pm", "payloads") {
		t.Errorf("PayloadPath: %s", got)
	}
	if got := cfg.SearchPath(); got != filepath.Join("/data/pm", "search") {
		t.Errorf("SearchPath: %s", got)
	}
}

func TestGetConfigValuePrecedence(t *testing.T) {
	t.Setenv("PM_TEST_KEY", "from-env")

	if got := getConfigValue("from-flag", "PM_TEST_KEY", "fallback"); got != "from-flag" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := getConfigValue("", "PM_TEST_KEY", "fallback"); got != "from-env" {
		t.Errorf("env should win over default, got %q", got)
	}
	if got := getConfigValue("", "PM_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("default expected, got %q", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nPM_ENVFILE_A=one\nPM_ENVFILE_B=\"two\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PM_ENVFILE_A", "")
	t.Setenv("PM_ENVFILE_B", "")
	os.Unsetenv("PM_ENVFILE_A")
	os.Unsetenv("PM_ENVFILE_B")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("PM_ENVFILE_A"); got != "one" {
		t.Errorf("PM_ENVFILE_A: got %q", got)
	}
	if got := os.Getenv("PM_ENVFILE_B"); got != "two" {
		t.Errorf("quotes should be stripped, got %q", got)
	}
}

func TestParseDurationValue(t *testing.T) {
	d, err := parseDurationValue("", "PM_MISSING_DURATION", "45s")
	if err != nil {
		t.Fatalf("parseDurationValue: %v", err)
	}
	if d != 45*time.Second {
		t.Errorf("got %v, want 45s", d)
	}

	if _, err := parseDurationValue("nonsense", "PM_MISSING_DURATION", "45s"); err == nil {
		t.Error("invalid duration accepted")
	}
}
