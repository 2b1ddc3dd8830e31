package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadParsesTypes(t *testing.T) {
	p := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /tmp/chatdb
chat:
  edit_window: 5m
  max_body_bytes: 64KB
  resubscribe_backoff_min: 100ms
  resubscribe_backoff_max: 5
logging:
  level: debug
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Chat.EditWindow.Duration() != 5*time.Minute {
		t.Fatalf("edit window = %v", cfg.Chat.EditWindow.Duration())
	}
	if cfg.Chat.MaxBodyBytes.Int64() != 64000 {
		t.Fatalf("max body = %d", cfg.Chat.MaxBodyBytes.Int64())
	}
	if cfg.Chat.ResubscribeBackoffMin.Duration() != 100*time.Millisecond {
		t.Fatalf("backoff min = %v", cfg.Chat.ResubscribeBackoffMin.Duration())
	}
	// bare numbers are seconds
	if cfg.Chat.ResubscribeBackoffMax.Duration() != 5*time.Second {
		t.Fatalf("backoff max = %v", cfg.Chat.ResubscribeBackoffMax.Duration())
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	p := writeConfig(t, "chat:\n  edit_window: shortly\n")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
}

func TestEffectiveConfigExplicitFileWins(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "10.0.0.1"
	fileCfg.Server.Port = 7000
	fileCfg.Server.DBPath = "/data/file"

	flags := Flags{Config: "/etc/marianchat.yaml", Set: map[string]bool{"config": true}}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &Config{}, EnvResult{})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if res.Source != "config" || res.Addr != "10.0.0.1:7000" || res.DBPath != "/data/file" {
		t.Fatalf("res = %+v", res)
	}
}

func TestEffectiveConfigExplicitFileMissing(t *testing.T) {
	flags := Flags{Config: "/nope/config.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, &Config{}, false, &Config{}, EnvResult{}); err == nil {
		t.Fatal("expected error when explicit --config file is absent")
	}
}

func TestEffectiveConfigFlagsWinOverFile(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "10.0.0.1"
	fileCfg.Server.Port = 7000
	fileCfg.Server.DBPath = "/data/file"
	fileCfg.Chat.EditWindow = Duration(2 * time.Minute)

	flags := Flags{
		Addr: "127.0.0.1:9999",
		DB:   "/data/flag",
		Set:  map[string]bool{"addr": true, "db": true},
	}
	res, err := LoadEffectiveConfig(flags, fileCfg, true, &Config{}, EnvResult{})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if res.Source != "flags" || res.Addr != "127.0.0.1:9999" || res.DBPath != "/data/flag" {
		t.Fatalf("res = %+v", res)
	}
	// tunables still come from the file
	if res.Config.Chat.EditWindow.Duration() != 2*time.Minute {
		t.Fatalf("edit window = %v", res.Config.Chat.EditWindow.Duration())
	}
}

func TestEffectiveConfigEnvOverridesFile(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.DBPath = "/data/file"
	fileCfg.Chat.EditWindow = Duration(2 * time.Minute)

	envCfg := &Config{}
	envCfg.Chat.EditWindow = Duration(10 * time.Minute)
	envCfg.Security.RateLimit.RPS = 50

	res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if res.Source != "config" {
		t.Fatalf("source = %q", res.Source)
	}
	if res.Config.Chat.EditWindow.Duration() != 10*time.Minute {
		t.Fatalf("edit window = %v", res.Config.Chat.EditWindow.Duration())
	}
	if res.Config.Security.RateLimit.RPS != 50 {
		t.Fatalf("rps = %v", res.Config.Security.RateLimit.RPS)
	}
}

func TestEffectiveConfigEnvOnly(t *testing.T) {
	envCfg := &Config{}
	envCfg.Server.Address = "0.0.0.0"
	envCfg.Server.Port = 8081
	envCfg.Server.DBPath = "/data/env"

	res, err := LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if res.Source != "env" || res.Addr != "0.0.0.0:8081" || res.DBPath != "/data/env" {
		t.Fatalf("res = %+v", res)
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("MARIANCHAT_ADDR", "192.168.1.5:8443")
	t.Setenv("MARIANCHAT_DB_PATH", "/data/env")
	t.Setenv("MARIANCHAT_API_BACKEND_KEYS", "k1, k2")
	t.Setenv("MARIANCHAT_EDIT_WINDOW", "3m")

	envCfg, envRes := ParseConfigEnvs()
	if !envRes.EnvUsed {
		t.Fatal("env not marked used")
	}
	if envCfg.Server.Address != "192.168.1.5" || envCfg.Server.Port != 8443 {
		t.Fatalf("server = %+v", envCfg.Server)
	}
	if envCfg.Server.DBPath != "/data/env" {
		t.Fatalf("db = %q", envCfg.Server.DBPath)
	}
	if _, ok := envRes.BackendKeys["k1"]; !ok {
		t.Fatalf("backend keys = %v", envRes.BackendKeys)
	}
	if _, ok := envRes.SigningKeys["k2"]; !ok {
		t.Fatalf("signing keys = %v", envRes.SigningKeys)
	}
	if envCfg.Chat.EditWindow.Duration() != 3*time.Minute {
		t.Fatalf("edit window = %v", envCfg.Chat.EditWindow.Duration())
	}
}

func TestResolveConfigPathEnv(t *testing.T) {
	t.Setenv("MARIANCHAT_CONFIG", "/env/config.yaml")
	if p := ResolveConfigPath("./config.yaml", false); p != "/env/config.yaml" {
		t.Fatalf("path = %q", p)
	}
	// explicit flag beats the env var
	if p := ResolveConfigPath("/flag/config.yaml", true); p != "/flag/config.yaml" {
		t.Fatalf("path = %q", p)
	}
}
