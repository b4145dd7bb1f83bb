package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds the resolved runtime configuration
type ServerConfig struct {
	ListenAddr             string
	MessageRateLimit       int
	RateLimitWindowSeconds int
	MaxMessageLength       int
	HistoryLimit           int
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:             ":8080",
		MessageRateLimit:       30, // frames per window
		RateLimitWindowSeconds: 60,
		MaxMessageLength:       4096, // bytes
		HistoryLimit:           50,   // messages sent on join
	}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server ServerSection `toml:"server"`
	Limits LimitsSection `toml:"limits"`
	Rooms  RoomsSection  `toml:"rooms"`
}

type ServerSection struct {
	ListenAddr   string `toml:"listen_addr"`
	DatabasePath string `toml:"database_path"`
}

type LimitsSection struct {
	MessageRateLimit       int `toml:"message_rate_limit"`
	RateLimitWindowSeconds int `toml:"rate_limit_window_seconds"`
	MaxMessageLength       int `toml:"max_message_length"`
	HistoryLimit           int `toml:"history_limit"`
}

type RoomsSection struct {
	SeedRooms []SeedRoom `toml:"seed_rooms"`
}

type SeedRoom struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			ListenAddr:   ":8080",
			DatabasePath: "~/.livechat/livechat.db",
		},
		Limits: LimitsSection{
			MessageRateLimit:       30,
			RateLimitWindowSeconds: 60,
			MaxMessageLength:       4096,
			HistoryLimit:           50,
		},
		Rooms: RoomsSection{
			SeedRooms: []SeedRoom{
				{Name: "General", Description: "General discussion"},
				{Name: "Random", Description: "Off-topic chat"},
			},
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(expanded, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(expanded, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# LiveChat Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if strings.TrimSpace(c.Server.ListenAddr) != "" {
		cfg.ListenAddr = c.Server.ListenAddr
	}
	if c.Limits.MessageRateLimit != 0 {
		cfg.MessageRateLimit = c.Limits.MessageRateLimit
	}
	if c.Limits.RateLimitWindowSeconds != 0 {
		cfg.RateLimitWindowSeconds = c.Limits.RateLimitWindowSeconds
	}
	if c.Limits.MaxMessageLength != 0 {
		cfg.MaxMessageLength = c.Limits.MaxMessageLength
	}
	if c.Limits.HistoryLimit != 0 {
		cfg.HistoryLimit = c.Limits.HistoryLimit
	}

	return cfg
}

// GetDatabasePath returns the database path with ~ expanded
func (c *TOMLConfig) GetDatabasePath() (string, error) {
	return expandHome(c.Server.DatabasePath)
}

// expandHome expands a leading ~/ to the user's home directory
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
