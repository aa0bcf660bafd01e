package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/joho/godotenv"
)

// ProfileConfig holds the per-profile browser settings.
type ProfileConfig struct {
	Name        types.Profile
	DebugPort   int
	UserDataDir string
	WindowTitle string
}

// Config holds all configuration for the tab relay server.
type Config struct {
	// Network settings.
	Host        string
	CommandPort int
	WSPort      int

	// Browser settings.
	BrowserPath string
	Personal    ProfileConfig
	Work        ProfileConfig

	// Tab matching behavior.
	PriorityDomains []string
	TitleRulesFile  string

	// Logging.
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Host:        getEnvOrDefault("HOST", "127.0.0.1"),
		CommandPort: getEnvIntOrDefault("PORT", 8765),
		WSPort:      getEnvIntOrDefault("WS_PORT", 8766),
		BrowserPath: getEnvOrDefault("BROWSER_PATH", ""),
		Personal: ProfileConfig{
			Name:        types.ProfilePersonal,
			DebugPort:   getEnvIntOrDefault("DEBUG_PORT_PERSONAL", 9222),
			UserDataDir: getEnvOrDefault("USER_DATA_DIR_PERSONAL", ""),
			WindowTitle: getEnvOrDefault("WINDOW_TITLE_PERSONAL", "personal"),
		},
		Work: ProfileConfig{
			Name:        types.ProfileWork,
			DebugPort:   getEnvIntOrDefault("DEBUG_PORT_WORK", 9223),
			UserDataDir: getEnvOrDefault("USER_DATA_DIR_WORK", ""),
			WindowTitle: getEnvOrDefault("WINDOW_TITLE_WORK", "work"),
		},
		PriorityDomains: getEnvListOrDefault("PRIORITY_DOMAINS", []string{"youtube.com", "chatgpt.com"}),
		TitleRulesFile:  getEnvOrDefault("TITLE_RULES_FILE", ""),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:         getEnvOrDefault("LOG_FILE", "logs/tab_server.log"),
	}

	if cfg.Personal.DebugPort == cfg.Work.DebugPort {
		return nil, fmt.Errorf("config: personal and work profiles share debug port %d", cfg.Personal.DebugPort)
	}

	return cfg, nil
}

// Profile returns the settings for the named profile, defaulting to personal.
func (c *Config) Profile(p types.Profile) ProfileConfig {
	if p.OrDefault() == types.ProfileWork {
		return c.Work
	}
	return c.Personal
}

// Profiles returns both profile configurations in a fixed order.
func (c *Config) Profiles() []ProfileConfig {
	return []ProfileConfig{c.Personal, c.Work}
}

// DebugURL returns the HTTP base of the profile's browser debug endpoint.
func (c *Config) DebugURL(p types.Profile) string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Profile(p).DebugPort)
}

// CommandAddr returns the one-shot command channel listen address.
func (c *Config) CommandAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.CommandPort)
}

// BindAddr returns the HTTP/WebSocket server bind address.
func (c *Config) BindAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.WSPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
