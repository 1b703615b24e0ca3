package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"transcript-server/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. TRANSCRIPT_SERVER_ADDR.
const EnvPrefix = "TRANSCRIPT"

// Store defines persistence operations for server settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// FileStore reads settings from a YAML file layered over defaults and
// environment variables.
type FileStore struct {
	path    string
	envFile string
}

// NewFileStore creates a viper-backed settings store. An empty path loads
// defaults and environment only.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, envFile: ".env"}
}

// Load reads settings from disk or returns defaults when the file is missing.
func (s *FileStore) Load() (domain.Settings, error) {
	if s.envFile != "" {
		if err := godotenv.Load(s.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, fmt.Errorf("load %s: %w", s.envFile, err)
		}
	}

	v := viper.New()
	for key, value := range settingsMap(DefaultSettings()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("data_dir", EnvPrefix+"_DB", EnvPrefix+"_DATA_DIR"); err != nil {
		return domain.Settings{}, err
	}

	if s.path != "" {
		_, err := os.Stat(s.path)
		switch {
		case err == nil:
			v.SetConfigFile(s.path)
			if err := v.ReadInConfig(); err != nil {
				return domain.Settings{}, fmt.Errorf("read config %s: %w", s.path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return domain.Settings{}, err
		}
	}

	var cfg domain.Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Save writes settings as YAML and creates parent directories.
func (s *FileStore) Save(cfg domain.Settings) error {
	if s.path == "" {
		return errors.New("config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	for key, value := range settingsMap(cfg) {
		v.Set(key, value)
	}

	return v.WriteConfigAs(s.path)
}
