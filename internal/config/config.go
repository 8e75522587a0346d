package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/titpd/internal/observability"
	"github.com/danmuck/titpd/internal/protocol/frame"
	"github.com/danmuck/titpd/internal/protocol/iso8583"
	"github.com/danmuck/titpd/internal/server"
	"github.com/rs/zerolog/log"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the process configuration for titpd.
type Config struct {
	Port           int
	SchemaFile     string
	PoolSize       int
	SessionTimeout time.Duration
	WriteTimeout   time.Duration
	DrainTimeout   time.Duration
	AdminAddr      string
	CORSOrigins    []string
	AdminToken     string
	BinaryHeader   bool
	BinaryBitmap   bool
	BinaryFields   bool
	AssignDate     bool
	MaxFrame       int
}

func Default() Config {
	return Config{
		Port:           8080,
		PoolSize:       50,
		SessionTimeout: 30 * time.Second,
		WriteTimeout:   30 * time.Second,
		DrainTimeout:   30 * time.Second,
		BinaryHeader:   true,
		BinaryBitmap:   true,
		BinaryFields:   true,
		AssignDate:     true,
		MaxFrame:       frame.MaxPayloadLen,
	}
}

type fileConfig struct {
	Port           int      `toml:"port"`
	SchemaFile     string   `toml:"schema_file"`
	PoolSize       int      `toml:"pool_size"`
	SessionTimeout string   `toml:"session_timeout"`
	WriteTimeout   string   `toml:"write_timeout"`
	DrainTimeout   string   `toml:"drain_timeout"`
	AdminAddr      string   `toml:"admin_addr"`
	CORSOrigins    []string `toml:"cors_origins"`
	AdminToken     string   `toml:"admin_token"`
	BinaryHeader   bool     `toml:"binary_header"`
	BinaryBitmap   bool     `toml:"binary_bitmap"`
	BinaryFields   bool     `toml:"binary_fields"`
	AssignDate     bool     `toml:"assign_date"`
	MaxFrame       int      `toml:"max_frame"`
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load titpd config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		log.Warn().Str("path", path).Interface("keys", undecoded).Msg("config_unknown_keys")
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("schema_file") {
		cfg.SchemaFile = strings.TrimSpace(raw.SchemaFile)
	}
	if meta.IsDefined("pool_size") {
		cfg.PoolSize = raw.PoolSize
	}
	if meta.IsDefined("session_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SessionTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse session_timeout: %w", err)
		}
		cfg.SessionTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if meta.IsDefined("drain_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DrainTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse drain_timeout: %w", err)
		}
		cfg.DrainTimeout = d
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("binary_header") {
		cfg.BinaryHeader = raw.BinaryHeader
	}
	if meta.IsDefined("binary_bitmap") {
		cfg.BinaryBitmap = raw.BinaryBitmap
	}
	if meta.IsDefined("binary_fields") {
		cfg.BinaryFields = raw.BinaryFields
	}
	if meta.IsDefined("assign_date") {
		cfg.AssignDate = raw.AssignDate
	}
	if meta.IsDefined("max_frame") {
		cfg.MaxFrame = raw.MaxFrame
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d outside 1-65535", ErrInvalidConfig, c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("%w: pool_size must be at least 1", ErrInvalidConfig)
	}
	if c.SessionTimeout < 0 || c.WriteTimeout < 0 || c.DrainTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.MaxFrame < 1 || c.MaxFrame > frame.MaxPayloadLen {
		return fmt.Errorf("%w: max_frame %d outside 1-%d", ErrInvalidConfig, c.MaxFrame, frame.MaxPayloadLen)
	}
	return nil
}

func (c Config) Server() server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", c.Port)
	cfg.PoolSize = c.PoolSize
	cfg.SessionTimeout = c.SessionTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.DrainTimeout = c.DrainTimeout
	cfg.MaxFrame = c.MaxFrame
	return cfg
}

func (c Config) CodecOptions() iso8583.Options {
	return iso8583.Options{
		BinaryHeader: c.BinaryHeader,
		BinaryBitmap: c.BinaryBitmap,
		BinaryFields: c.BinaryFields,
		AssignDate:   c.AssignDate,
	}
}

func (c Config) Admin() observability.AdminConfig {
	return observability.AdminConfig{
		Addr:        c.AdminAddr,
		CORSOrigins: c.CORSOrigins,
		Token:       c.AdminToken,
	}
}

// Codec loads the schema file, or the built-in schema when none is set, and
// builds the message codec.
func (c Config) Codec() (*iso8583.Codec, error) {
	schema := iso8583.DefaultSchema()
	if c.SchemaFile != "" {
		loaded, err := iso8583.LoadSchema(c.SchemaFile)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}
	return iso8583.NewCodec(schema, c.CodecOptions())
}

// LogConfiguration writes the effective configuration at startup.
func (c Config) LogConfiguration() {
	schema := c.SchemaFile
	if schema == "" {
		schema = "(built-in)"
	}
	log.Info().
		Int("port", c.Port).
		Str("schema_file", schema).
		Int("pool_size", c.PoolSize).
		Dur("session_timeout", c.SessionTimeout).
		Dur("write_timeout", c.WriteTimeout).
		Dur("drain_timeout", c.DrainTimeout).
		Str("admin_addr", c.AdminAddr).
		Bool("admin_token_set", c.AdminToken != "").
		Bool("binary_header", c.BinaryHeader).
		Bool("binary_bitmap", c.BinaryBitmap).
		Bool("binary_fields", c.BinaryFields).
		Bool("assign_date", c.AssignDate).
		Int("max_frame", c.MaxFrame).
		Msg("server_config")
}
