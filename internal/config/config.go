// Package config loads configuration from, in order of increasing
// precedence: a YAML file, VOCADRILL_-prefixed environment variables, and
// command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
)

type Config struct {
	Listen       string `koanf:"listen" validate:"required"`
	LogLevel     string `koanf:"log_level" validate:"oneof=debug info warn error"`
	Backend      string `koanf:"backend" validate:"oneof=sqlite postgres file"`
	DSN          string `koanf:"dsn" validate:"required_if=Backend postgres"`
	DataDir      string `koanf:"data_dir" validate:"required_if=Backend file"`
	LessonsDir   string `koanf:"lessons_dir" validate:"required"`
	SessionLimit int    `koanf:"session_limit" validate:"gt=0"`
}

var validate = validator.New()

// Load parses flags from args (typically os.Args[1:]) and merges all
// configuration sources. A missing config file is only an error when one was
// named explicitly.
func Load(args []string) (*Config, error) {
	flags := flag.NewFlagSet("vocadrill", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to a YAML config file")
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("log_level", "info", "Log level: debug, info, warn or error")
	flags.String("backend", "sqlite", "Storage backend: sqlite, postgres or file")
	flags.String("dsn", "vocadrill.db", "Database DSN (sqlite path or postgres URL)")
	flags.String("data_dir", "data", "Data directory for the file backend")
	flags.String("lessons_dir", "lessons", "Directory holding lesson vocab files")
	flags.Int("session_limit", 15, "Default cap on cards per review session")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if *configPath != "" {
		if err := k.Load(file.Provider(*configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", *configPath, err)
		}
	}

	if err := k.Load(env.Provider("VOCADRILL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "VOCADRILL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main: it prints the error and exits.
func MustLoad(args []string) *Config {
	cfg, err := Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}
