// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// EngineConfig holds the per-game rules copied into every new game.
type EngineConfig struct {
	FieldSlots     int  `mapstructure:"field_slots"`
	StartingHP     int  `mapstructure:"starting_hp"`
	HandSize       int  `mapstructure:"hand_size"`
	SkipFirstDraw  bool `mapstructure:"skip_first_draw"`
	MaxConsumption int  `mapstructure:"max_consumption"`
	MaxStalkBonus  int  `mapstructure:"max_stalk_bonus"`
	// Seed fixes every game's random source. Zero seeds from the clock.
	Seed uint64 `mapstructure:"seed"`
	// ReplayDir receives finished game replays. Empty disables saving.
	ReplayDir string `mapstructure:"replay_dir"`
}

// Rules converts the section to game rules.
func (e EngineConfig) Rules() state.Rules {
	return state.Rules{
		FieldSlots:     e.FieldSlots,
		StartingHP:     e.StartingHP,
		HandSize:       e.HandSize,
		SkipFirstDraw:  e.SkipFirstDraw,
		MaxConsumption: e.MaxConsumption,
		MaxStalkBonus:  e.MaxStalkBonus,
	}
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output lists zap sinks: "stdout", "stderr" or file paths.
	Output []string `mapstructure:"output"`
}

// ServerConfig holds websocket server settings.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	ReadBuffer  int    `mapstructure:"read_buffer"`
	WriteBuffer int    `mapstructure:"write_buffer"`
	// SendQueue is how many outbound messages a client may have pending
	// before it is dropped.
	SendQueue    int           `mapstructure:"send_queue"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CatalogConfig selects where card definitions come from.
type CatalogConfig struct {
	// Source is "yaml" or "postgres".
	Source string `mapstructure:"source"`
	// Dir holds the YAML catalog files.
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ScriptingConfig holds Lua card script settings.
type ScriptingConfig struct {
	// Dir holds the Lua files defining effect hooks. Empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit bounds the VM instructions a single hook may run.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateEngine(c.Engine),
		validateLogging(c.Logging),
		validateServer(c.Server),
		validateCatalog(c.Catalog),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Catalog.Source == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.FieldSlots < 1 {
		errs = append(errs, fmt.Sprintf("engine.field_slots must be >= 1, got %d", e.FieldSlots))
	}
	if e.StartingHP < 1 {
		errs = append(errs, fmt.Sprintf("engine.starting_hp must be >= 1, got %d", e.StartingHP))
	}
	if e.HandSize < 0 {
		errs = append(errs, fmt.Sprintf("engine.hand_size must be >= 0, got %d", e.HandSize))
	}
	if e.MaxConsumption < 1 {
		errs = append(errs, fmt.Sprintf("engine.max_consumption must be >= 1, got %d", e.MaxConsumption))
	}
	if e.MaxStalkBonus < 0 {
		errs = append(errs, fmt.Sprintf("engine.max_stalk_bonus must be >= 0, got %d", e.MaxStalkBonus))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Address == "" {
		errs = append(errs, "server.address must not be empty")
	}
	if s.ReadBuffer < 0 || s.WriteBuffer < 0 {
		errs = append(errs, "server buffers must not be negative")
	}
	if s.SendQueue < 1 {
		errs = append(errs, fmt.Sprintf("server.send_queue must be >= 1, got %d", s.SendQueue))
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCatalog(c CatalogConfig) error {
	switch c.Source {
	case "yaml":
		if c.Dir == "" {
			return fmt.Errorf("catalog.dir must not be empty for the yaml source")
		}
	case "postgres":
	default:
		return fmt.Errorf("catalog.source must be one of [yaml, postgres], got %q", c.Source)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must be between 0 and database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with FOODCHAIN_ prefix
	v.SetEnvPrefix("FOODCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	rules := state.DefaultRules()
	v.SetDefault("engine.field_slots", rules.FieldSlots)
	v.SetDefault("engine.starting_hp", rules.StartingHP)
	v.SetDefault("engine.hand_size", rules.HandSize)
	v.SetDefault("engine.skip_first_draw", rules.SkipFirstDraw)
	v.SetDefault("engine.max_consumption", rules.MaxConsumption)
	v.SetDefault("engine.max_stalk_bonus", rules.MaxStalkBonus)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.replay_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", []string{"stderr"})

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_buffer", 1024)
	v.SetDefault("server.write_buffer", 1024)
	v.SetDefault("server.send_queue", 64)
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("catalog.source", "yaml")
	v.SetDefault("catalog.dir", "data/cards")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "foodchain")
	v.SetDefault("database.password", "foodchain")
	v.SetDefault("database.name", "foodchain")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("scripting.dir", "")
	v.SetDefault("scripting.instruction_limit", 100000)
}
