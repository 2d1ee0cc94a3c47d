package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Redis  RedisConfig  `yaml:"redis"`
	JWT    JWTConfig    `yaml:"jwt"`
	Server ServerConfig `yaml:"server"`
}

// Load reads the yaml config file when present and applies env-var
// overrides on top. A missing file is not an error; env alone is a
// valid configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DB:     DBConfig{Host: "localhost", Port: "5432", User: "postgres", Name: "projecthub"},
		Server: ServerConfig{Port: "8080", Mode: "development"},
	}

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	overrideFromEnv(cfg)
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	setString(&cfg.DB.Host, "POSTGRES_HOST")
	setString(&cfg.DB.Port, "POSTGRES_PORT")
	setString(&cfg.DB.User, "POSTGRES_USER")
	setString(&cfg.DB.Password, "POSTGRES_PASSWORD")
	setString(&cfg.DB.Name, "POSTGRES_NAME")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.JWT.Secret, "JWT_SECRET_KEY")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "LOG_MODE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
