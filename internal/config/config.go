// Package config resolves settings from flags, SHIKSHA_* environment
// variables, an optional .env file and an optional config file, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SHIKSHA"

// Keys shared by flags, env vars and config files.
const (
	KeyVerbose         = "verbose"
	KeyJSON            = "json"
	KeyNoProgress      = "no-progress"
	KeyModel           = "model"
	KeyModelDir        = "model-dir"
	KeyAutoDownload    = "auto-download"
	KeyAddr            = "addr"
	KeyCORSOrigin      = "cors-origin"
	KeyStagingDir      = "staging-dir"
	KeyMaxUploadMB     = "max-upload-mb"
	KeyMaxConcurrent   = "max-concurrent"
	KeyFullPrecision   = "full-precision"
	KeySilenceGate     = "silence-gate"
	KeySilenceDBFS     = "silence-threshold-dbfs"
	KeyShutdownTimeout = "shutdown-timeout"
)

type Config struct {
	Verbose    bool `mapstructure:"verbose"`
	JSON       bool `mapstructure:"json"`
	NoProgress bool `mapstructure:"no-progress"`

	Model        string `mapstructure:"model"`
	ModelDir     string `mapstructure:"model-dir"`
	AutoDownload bool   `mapstructure:"auto-download"`

	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	CORSOrigin      string        `mapstructure:"cors-origin" validate:"required,http_url"`
	StagingDir      string        `mapstructure:"staging-dir"`
	MaxUploadMB     int64         `mapstructure:"max-upload-mb" validate:"gt=0,lte=2048"`
	MaxConcurrent   int64         `mapstructure:"max-concurrent" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" validate:"gt=0"`

	FullPrecision        bool    `mapstructure:"full-precision"`
	SilenceGate          bool    `mapstructure:"silence-gate"`
	SilenceThresholdDBFS float64 `mapstructure:"silence-threshold-dbfs" validate:"lte=0"`
}

// Defaults mirror the flag defaults so commands that do not register every
// flag still validate.
func Defaults() Config {
	return Config{
		Model:                "base",
		AutoDownload:         true,
		Addr:                 "0.0.0.0:8000",
		CORSOrigin:           "http://localhost:3000",
		MaxUploadMB:          100,
		ShutdownTimeout:      30 * time.Second,
		SilenceThresholdDBFS: -65,
	}
}

// MaxUploadBytes is the request body cap derived from MaxUploadMB.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

type loadOptions struct {
	configFile string
	envFile    string
}

type Option func(*loadOptions)

// WithConfigFile reads a YAML/TOML/JSON config file; an explicit file that
// cannot be read is an error.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads KEY=VALUE pairs into the environment first. A missing
// file is ignored.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// Load merges flags (only those the user set override lower layers), the
// environment and config files over Defaults, then validates the result.
func Load(flags *pflag.FlagSet, opts ...Option) (Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.envFile != "" {
		if err := godotenv.Load(lo.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", lo.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", lo.configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault(KeyVerbose, d.Verbose)
	v.SetDefault(KeyJSON, d.JSON)
	v.SetDefault(KeyNoProgress, d.NoProgress)
	v.SetDefault(KeyModel, d.Model)
	v.SetDefault(KeyModelDir, d.ModelDir)
	v.SetDefault(KeyAutoDownload, d.AutoDownload)
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyCORSOrigin, d.CORSOrigin)
	v.SetDefault(KeyStagingDir, d.StagingDir)
	v.SetDefault(KeyMaxUploadMB, d.MaxUploadMB)
	v.SetDefault(KeyMaxConcurrent, d.MaxConcurrent)
	v.SetDefault(KeyShutdownTimeout, d.ShutdownTimeout)
	v.SetDefault(KeyFullPrecision, d.FullPrecision)
	v.SetDefault(KeySilenceGate, d.SilenceGate)
	v.SetDefault(KeySilenceDBFS, d.SilenceThresholdDBFS)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		})
	})
	return validate
}

// Validate reports every invalid setting by its flag name.
func Validate(cfg Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fmt.Sprintf("--%s %s", fe.Field(), describe(fe)))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "hostname_port":
		return "must be host:port"
	case "http_url":
		return "must be an http(s) URL"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
