package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string        `yaml:"addr"`
	JWTSecret    string        `yaml:"jwt_secret"`
	APITimeout   time.Duration `yaml:"timeout"`
	DatabasePath string        `yaml:"database_path"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	Backup       BackupConfig  `yaml:"backup"`
}

type BackupConfig struct {
	Directory  string `yaml:"directory"`   // user-chosen backup directory, empty until selected
	SpoolDir   string `yaml:"spool_dir"`   // fallback spool served for download
	Filename   string `yaml:"filename"`    // backup file name
	Threshold  int    `yaml:"threshold"`   // changes before an auto-export
	AutoImport bool   `yaml:"auto_import"` // pull newer backup file on startup
}

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	idleTimeout := 5 * time.Minute

	cfg := &Config{
		Addr:         getEnv("MEDVEILLE_ADDR", ":8080"),
		JWTSecret:    getEnv("MEDVEILLE_JWT_SECRET", "supersecretkey"),
		APITimeout:   apiTimeout,
		DatabasePath: getEnv("MEDVEILLE_DATABASE_PATH", "medveille.db"),
		IdleTimeout:  idleTimeout,
		Backup: BackupConfig{
			SpoolDir:  getEnv("MEDVEILLE_SPOOL_DIR", "spool"),
			Filename:  "medveille-backup.json",
			Threshold: 10,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
