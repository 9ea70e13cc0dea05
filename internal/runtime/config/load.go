package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
)

// Load reads a .env file from the working directory when one exists, then
// parses SOCKETBUS_* variables over the defaults and validates the result.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	conf := &Config{}
	if err := env.Parse(conf); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return conf, errspkg.NewConfigValidationError(conf.Validate())
}

// LoadFile reads a YAML file over the defaults, then applies any SOCKETBUS_*
// variable that is set. Precedence is environment, file, default.
func LoadFile(path string) (*Config, error) {
	conf, err := Defaults()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, conf); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	fromEnv := &Config{}
	if err := env.Parse(fromEnv); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	applySetVariables(conf, fromEnv)

	return conf, errspkg.NewConfigValidationError(conf.Validate())
}

// Defaults returns a Config holding only the envDefault values.
func Defaults() (*Config, error) {
	conf := &Config{}
	if err := env.ParseWithOptions(conf, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return conf, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applySetVariables copies into dst every field of src whose env variable is
// present in the process environment.
func applySetVariables(dst, src *Config) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	t := dv.Type()
	for i := 0; i < t.NumField(); i++ {
		key, _, _ := strings.Cut(t.Field(i).Tag.Get("env"), ",")
		if key == "" {
			continue
		}
		if _, ok := os.LookupEnv(key); ok {
			dv.Field(i).Set(sv.Field(i))
		}
	}
}
