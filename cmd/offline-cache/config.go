package main

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     int            `yaml:"port" env:"PORT"`
	Origin   string         `yaml:"origin" env:"ORIGIN"`
	Host     string         `yaml:"host" env:"ORIGIN_HOST"`
	Provider string         `yaml:"provider" env:"CACHE_PROVIDER"`
	DBFile   string         `yaml:"dbFile" env:"CACHE_DB"`
	Versions ConfigVersions `yaml:"versions"`
	Manifest []string       `yaml:"manifest"`
	Offline  string         `yaml:"offline"`
	Rules    ConfigRules    `yaml:"rules"`
}

type ConfigVersions struct {
	Static  string `yaml:"static" env:"STATIC_VERSION"`
	Dynamic string `yaml:"dynamic" env:"DYNAMIC_VERSION"`
}

type ConfigRules struct {
	NetworkFirst         []string `yaml:"networkFirst"`
	StaleWhileRevalidate []string `yaml:"staleWhileRevalidate"`
}

// getConfig loads the config file (if any) and applies environment
// overrides on top.
func getConfig(filename string) (Config, error) {
	config := Config{
		Port:     8080,
		Provider: "sqlite",
		Versions: ConfigVersions{
			Static:  "static-v1",
			Dynamic: "dynamic-v1",
		},
	}
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, err
		}
	}
	err := env.Parse(&config)
	return config, err
}
