package main

import (
	"os"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries the runtime settings of the pet store. Every field is
// optional; zero values fall back to the declared defaults.
type Config struct {
	Port     int `yaml:"port" default:"8080"`
	Document struct {
		// Path points at an OpenAPI document to serve instead of the
		// embedded one.
		Path string `yaml:"path"`
	} `yaml:"document"`
	Logging struct {
		Verbosity int `yaml:"verbosity"`
	} `yaml:"logging"`
}

var config Config

func loadConfig(path string) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read the config file at %s", path)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return errors.Wrap(err, "failed to parse the config file")
		}
	}
	return errors.Wrap(defaults.Set(&config), "failed to apply config defaults")
}
