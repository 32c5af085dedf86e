package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProviderConfig holds the outbound WhatsApp/SMS gateway settings.
// The API key is deliberately not defaulted; it comes from the config
// file or the CHATLINE_PROVIDER_API_KEY environment variable.
type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// RedisConfig holds the optional verification-code store settings.
// An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// AdminConfig holds the admin profile defaults used until the admin
// edits their profile.
type AdminConfig struct {
	Name   string `toml:"name"`
	Avatar string `toml:"avatar"`
	About  string `toml:"about"`
}

// Config is the daemon configuration loaded from chatline.toml.
type Config struct {
	ListenAddr     string `toml:"listen_addr"`
	DataDir        string `toml:"data_dir"`
	UploadDir      string `toml:"upload_dir"`
	LogPath        string `toml:"log_path"`
	WelcomeMessage string `toml:"welcome_message"`

	Provider ProviderConfig `toml:"provider"`
	Redis    RedisConfig    `toml:"redis"`
	Admin    AdminConfig    `toml:"admin"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".chatline")
	return &Config{
		ListenAddr:     ":8084",
		DataDir:        base,
		UploadDir:      filepath.Join(base, "uploads"),
		LogPath:        filepath.Join(base, "logs", "chatlined.log"),
		WelcomeMessage: "¡Bienvenido! Escríbenos y te responderemos a la brevedad.",
		Provider: ProviderConfig{
			BaseURL: "https://gateway.sms77.io/api",
		},
		Admin: AdminConfig{
			Name:   "Atención al cliente",
			Avatar: "",
			About:  "Cuenta oficial",
		},
	}
}

// Load reads config from path, layering the file over defaults.
// A missing file is not an error: defaults are returned unchanged.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if key := os.Getenv("CHATLINE_PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if addr := os.Getenv("CHATLINE_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
