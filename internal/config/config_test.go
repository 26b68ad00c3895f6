package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
games:
  - game: minecraft
    host: 127.0.0.1
    port: 25575
    rcon_password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1", cfg.Server.ListenAddr)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.CrashDetector.Threshold != 3 {
		t.Errorf("Threshold = %d, want 3", cfg.CrashDetector.Threshold)
	}
	if cfg.Auth.TokenDuration != 24*time.Hour {
		t.Errorf("TokenDuration = %v, want 24h", cfg.Auth.TokenDuration)
	}
	if cfg.Economy.ChatCooldown != 60*time.Second {
		t.Errorf("ChatCooldown = %v, want 60s", cfg.Economy.ChatCooldown)
	}
	if cfg.Games[0].PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Games[0].PollInterval)
	}
	if cfg.Games[0].TailInterval != time.Second {
		t.Errorf("TailInterval = %v, want 1s", cfg.Games[0].TailInterval)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: 0.0.0.0
  http_port: 9090
crash_detector:
  offline_checks_before_alert: 5
games:
  - game: palworld
    host: 10.0.0.5
    port: 25575
    rcon_password: secret
    poll_interval: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ListenAddr != "0.0.0.0" || cfg.Server.HTTPPort != 9090 {
		t.Errorf("server = %s:%d, want 0.0.0.0:9090", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	if cfg.CrashDetector.Threshold != 5 {
		t.Errorf("Threshold = %d, want 5", cfg.CrashDetector.Threshold)
	}
	if cfg.Games[0].PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Games[0].PollInterval)
	}
}

func TestLoadRejectsInvalidScheduleTime(t *testing.T) {
	path := writeConfig(t, `
schedule:
  - time_utc: "25:99"
    message: reboot soon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid schedule time")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGameConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GameConfig
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     GameConfig{Game: "minecraft", Host: "127.0.0.1", Port: 25575, RconPassword: "x"},
			wantErr: false,
		},
		{
			name:    "missing game",
			cfg:     GameConfig{Host: "127.0.0.1", Port: 25575, RconPassword: "x"},
			wantErr: true,
		},
		{
			name:    "missing host",
			cfg:     GameConfig{Game: "ark", Port: 27020, RconPassword: "x"},
			wantErr: true,
		},
		{
			name:    "missing port",
			cfg:     GameConfig{Game: "ark", Host: "127.0.0.1", RconPassword: "x"},
			wantErr: true,
		},
		{
			name:    "missing password",
			cfg:     GameConfig{Game: "palworld", Host: "127.0.0.1", Port: 25575},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGameConfigAddress(t *testing.T) {
	g := GameConfig{Host: "10.1.2.3", Port: 25575}
	if got := g.Address(); got != "10.1.2.3:25575" {
		t.Errorf("Address() = %q", got)
	}
}
