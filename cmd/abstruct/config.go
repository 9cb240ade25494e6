package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/abstruct/schema"
	"github.com/wippyai/abstruct/schema/dsl"
)

// Config is the abstruct configuration file, YAML or TOML by extension.
// Pointer fields tell "not set" apart from zero values.
type Config struct {
	SchemaDirs []string `yaml:"schema_dirs" toml:"schema_dirs"`
	Format     string   `yaml:"format" toml:"format"`

	Strict *bool `yaml:"strict" toml:"strict"`
	Debug  *bool `yaml:"debug" toml:"debug"`
	Color  *bool `yaml:"color" toml:"color"`

	// Preview is how many bytes of a byte field the tree view shows.
	Preview *int `yaml:"preview" toml:"preview"`
}

const defaultPreview = 16

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "abstruct", "config.yaml")
}

// LoadConfig reads the config at path. With an empty path the user config
// file is tried, and a missing one yields a zero Config.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				return Config{}, nil
			}
			return Config{}, fmt.Errorf("load config: %w", err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				return Config{}, nil
			}
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// settings are the effective options of one command run.
type settings struct {
	format  string
	dirs    []string
	strict  bool
	debug   bool
	color   bool
	preview int
}

// applyConfig fills settings from cfg where the matching flag was not
// given on the command line.
func applyConfig(c *cli.Command, cfg Config, s *settings) {
	if cfg.Format != "" && !c.IsSet("format") {
		s.format = cfg.Format
	}
	if len(cfg.SchemaDirs) > 0 && !c.IsSet("schema-dir") {
		s.dirs = cfg.SchemaDirs
	}
	if cfg.Strict != nil && !c.IsSet("strict") {
		s.strict = *cfg.Strict
	}
	if cfg.Debug != nil && !c.IsSet("debug") {
		s.debug = *cfg.Debug
	}
	if cfg.Color != nil && !c.IsSet("color") {
		s.color = *cfg.Color
	}
	if cfg.Preview != nil && !c.IsSet("preview") {
		s.preview = *cfg.Preview
	}
}

func loadSettings(c *cli.Command) (settings, error) {
	s := settings{
		format:  c.String("format"),
		dirs:    c.StringSlice("schema-dir"),
		strict:  c.Bool("strict"),
		debug:   c.Bool("debug"),
		color:   isTerminal(os.Stdout),
		preview: defaultPreview,
	}
	if c.IsSet("color") {
		s.color = c.Bool("color")
	}
	if c.IsSet("preview") {
		s.preview = int(c.Int("preview"))
	}
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return settings{}, err
	}
	applyConfig(c, cfg, &s)
	return s, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// newLogger logs format violations at warn level, or everything with
// debug set.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.DisableCaller = true
	}
	return cfg.Build()
}

// env is what a command needs to decode files: its settings, the
// user-declared schemas and the logger.
type env struct {
	settings
	registry *dsl.Registry
	log      *zap.Logger
}

func setup(c *cli.Command) (*env, error) {
	s, err := loadSettings(c)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(s.debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	schema.SetLogger(log)

	reg := dsl.NewRegistry()
	for _, dir := range s.dirs {
		if err := reg.AddDir(dir); err != nil {
			return nil, err
		}
		log.Debug("loaded schema directory", zap.String("dir", dir), zap.Strings("schemas", reg.Names()))
	}
	return &env{settings: s, registry: reg, log: log}, nil
}

func (e *env) options() []schema.Option {
	if e.strict {
		return []schema.Option{schema.Strict()}
	}
	return nil
}
