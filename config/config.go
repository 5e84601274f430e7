/*
Package config loads server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory, if present
  3. Environment variables (COMMISSION_*)
  4. Command-line flags

VARIABLES:
  COMMISSION_PORT          --port          HTTP port (8080)
  COMMISSION_DB            --db            SQLite path (commission.db)
  COMMISSION_LOG_LEVEL     --log-level     debug|info|warn|error (info)
  COMMISSION_LOG_FORMAT    --log-format    text|json (text)
  COMMISSION_LOG_FILE      --log-file      rotate logs into this file
  COMMISSION_SEED          --seed          distribution random seed, 0 = time-based
  COMMISSION_CORS_ORIGINS  --cors-origins  comma-separated allowed origins (*)
  COMMISSION_RULES_FILE    --rules         YAML rules file loaded on start
  COMMISSION_FUZZY_AGENTS  --fuzzy-agents  group report agents by similar names
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "COMMISSION"

// Config holds every server setting.
type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	LogFile     string
	Seed        int64
	CORSOrigins []string
	RulesFile   string
	FuzzyAgents bool
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:        8080,
		DBPath:      "commission.db",
		LogLevel:    "info",
		LogFormat:   "text",
		CORSOrigins: []string{"*"},
	}
}

// settings is the shape viper decodes into. Keys double as environment
// variable suffixes.
type settings struct {
	Port        int    `mapstructure:"port"`
	DB          string `mapstructure:"db"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogFile     string `mapstructure:"log_file"`
	Seed        int64  `mapstructure:"seed"`
	CORSOrigins string `mapstructure:"cors_origins"`
	RulesFile   string `mapstructure:"rules_file"`
	FuzzyAgents bool   `mapstructure:"fuzzy_agents"`
}

// flagKeys maps viper keys to flag names.
var flagKeys = map[string]string{
	"port":         "port",
	"db":           "db",
	"log_level":    "log-level",
	"log_format":   "log-format",
	"log_file":     "log-file",
	"seed":         "seed",
	"cors_origins": "cors-origins",
	"rules_file":   "rules",
	"fuzzy_agents": "fuzzy-agents",
}

// Load builds the configuration from .env, the environment and args
// (without the program name).
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return parse(args)
}

func parse(args []string) (Config, error) {
	def := Default()

	fset := pflag.NewFlagSet("commission-server", pflag.ContinueOnError)
	fset.Int("port", def.Port, "Server port")
	fset.String("db", def.DBPath, "SQLite database path")
	fset.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	fset.String("log-format", def.LogFormat, "Log format (text, json)")
	fset.String("log-file", def.LogFile, "Rotated log file (empty for stdout only)")
	fset.Int64("seed", def.Seed, "Distribution random seed (0 for time-based)")
	fset.String("cors-origins", strings.Join(def.CORSOrigins, ","), "Allowed CORS origins")
	fset.String("rules", def.RulesFile, "YAML rules file loaded on start")
	fset.Bool("fuzzy-agents", def.FuzzyAgents, "Group report agents by similar names")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fset.Lookup(name)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return Config{}, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", s.Port)
	}

	return Config{
		Port:        s.Port,
		DBPath:      s.DB,
		LogLevel:    s.LogLevel,
		LogFormat:   s.LogFormat,
		LogFile:     s.LogFile,
		Seed:        s.Seed,
		CORSOrigins: splitList(s.CORSOrigins),
		RulesFile:   s.RulesFile,
		FuzzyAgents: s.FuzzyAgents,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
