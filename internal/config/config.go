package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Games         []GameConfig        `yaml:"games"`
	CrashDetector CrashDetectorConfig `yaml:"crash_detector"`
	Economy       EconomyConfig       `yaml:"economy"`
	Schedule      []ScheduledEvent    `yaml:"schedule"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	HTTPPort   int    `yaml:"http_port"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds operator authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
	OperatorHash  string        `yaml:"operator_hash"` // bcrypt hash of the operator password
}

// GameConfig describes one game server to monitor
type GameConfig struct {
	Game         string        `yaml:"game"` // minecraft, palworld, ark
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	RconPassword string        `yaml:"rcon_password"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogPath      string        `yaml:"log_path"`
	TailInterval time.Duration `yaml:"tail_interval"`
}

// Address returns the host:port RCON endpoint
func (g GameConfig) Address() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// CrashDetectorConfig holds offline alert settings
type CrashDetectorConfig struct {
	Threshold int `yaml:"offline_checks_before_alert"`
}

// EconomyConfig gates the chat point rewards
type EconomyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	PointsPerChat int64         `yaml:"points_per_chat"`
	ChatCooldown  time.Duration `yaml:"chat_cooldown"`
}

// ScheduledEvent fires a broadcast and command sequence at a UTC time of day
type ScheduledEvent struct {
	TimeUTC          string   `yaml:"time_utc"` // "HH:MM"
	Message          string   `yaml:"message"`
	Commands         []string `yaml:"commands"`
	ShutdownCommands []string `yaml:"shutdown_commands"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/gamewatch/gamewatch.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.CrashDetector.Threshold == 0 {
		cfg.CrashDetector.Threshold = 3
	}
	if cfg.Economy.ChatCooldown == 0 {
		cfg.Economy.ChatCooldown = 60 * time.Second
	}
	for i := range cfg.Games {
		if cfg.Games[i].PollInterval == 0 {
			cfg.Games[i].PollInterval = 30 * time.Second
		}
		if cfg.Games[i].TailInterval == 0 {
			cfg.Games[i].TailInterval = time.Second
		}
	}

	// Validate schedule times up front so a typo fails at load, not at fire time
	for _, ev := range cfg.Schedule {
		if _, err := time.Parse("15:04", ev.TimeUTC); err != nil {
			return nil, fmt.Errorf("invalid schedule time %q: %w", ev.TimeUTC, err)
		}
	}

	return &cfg, nil
}

// Validate checks a single game entry; invalid entries disable that game only
func (g GameConfig) Validate() error {
	if g.Game == "" {
		return fmt.Errorf("game identifier is required")
	}
	if g.Host == "" || g.Port == 0 {
		return fmt.Errorf("game %s: rcon host and port are required", g.Game)
	}
	if g.RconPassword == "" {
		return fmt.Errorf("game %s: rcon_password is required", g.Game)
	}
	return nil
}
