// Package config fills configuration structs from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg using its `env` and
// `envDefault` struct tags.
//
//	type Config struct {
//	    HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	return LoadWithOptions(cfg, env.Options{})
}

// LoadWithPrefix is Load with every variable name prefixed, e.g. "COUPON_".
func LoadWithPrefix(cfg any, prefix string) error {
	return LoadWithOptions(cfg, env.Options{Prefix: prefix})
}

// LoadWithOptions exposes the underlying parser options, mostly for tests
// that inject an environment map instead of touching the process env.
func LoadWithOptions(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
