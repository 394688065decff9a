package main

import "github.com/kelseyhightower/envconfig"

// Config holds process-wide settings sourced from the environment, the way
// most of the ambient-stack examples in the pack configure their daemons
// rather than threading every knob through flags.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

func loadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("rbqlrun", &cfg)
	return cfg, err
}
