// Package config loads the server settings from a JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as "5s" or "1m30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Port         int      `json:"port"`
	Webroot      string   `json:"webroot"`
	PingInterval Duration `json:"pingInterval"`
}

func Default() Config {
	return Config{
		Port:         8080,
		Webroot:      "webroot",
		PingInterval: Duration(5 * time.Second),
	}
}

// Load reads the JSON file at path over the defaults. Fields missing from
// the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Webroot == "" {
		return fmt.Errorf("%w: webroot is empty", ErrInvalidConfig)
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("%w: negative ping interval", ErrInvalidConfig)
	}
	return nil
}
