package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the config lookup.
const EnvPath = "TSHCONFIG"

const fileName = "tsh.yaml"

type Config struct {
	Prompt   string `yaml:"prompt"`
	NoPrompt bool   `yaml:"no_prompt"`
	Verbose  bool   `yaml:"verbose"`
	Log      Log    `yaml:"log"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Prompt: "tsh> ",
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load decodes a YAML document on top of the defaults. Unknown keys are an
// error.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unsupported value %q", c.Log.Format)
	}
	return nil
}

// Level is the effective log level; verbose wins over the configured one.
func (c Config) Level() string {
	if c.Verbose {
		return "debug"
	}
	return c.Log.Level
}

// Path picks the config file: the environment, then the flag value, then
// tsh.yaml in the working directory, then in the user config directory.
// An empty result means no file was found.
func Path(flagPath string) string {
	if p, ok := os.LookupEnv(EnvPath); ok && p != "" {
		return p
	}
	if flagPath != "" {
		return flagPath
	}
	candidates := []string{fileName}
	if d, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(d, "tsh", fileName))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// LoadFile loads path, or returns the defaults when path is empty.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
