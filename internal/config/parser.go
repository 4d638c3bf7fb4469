package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ParseConfig decodes the embedded app config, resolves user data dirs to
// absolute paths, and applies environment overrides for the Elasticsearch
// credentials so they can live in a .env file instead of the embedded JSON.
func ParseConfig(byteConfig []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(byteConfig, &cfg); err != nil {
		return nil, err
	}
	if cfg.Chromedp.UserDataDir != "" {
		absPath, err := filepath.Abs(cfg.Chromedp.UserDataDir)
		if err != nil {
			return nil, err
		}
		cfg.Chromedp.UserDataDir = absPath
	}
	if cfg.Rod.UserDataDir != "" {
		absPath, err := filepath.Abs(cfg.Rod.UserDataDir)
		if err != nil {
			return nil, err
		}
		cfg.Rod.UserDataDir = absPath
	}
	if v := os.Getenv("ES_ADDRESS"); v != "" {
		cfg.Elasticsearch.Address = v
	}
	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	return &cfg, nil
}
