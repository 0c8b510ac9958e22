// Package config loads server and client settings from defaults, an optional
// config file and PAGESMITH_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "PAGESMITH"

const (
	StoreFS       = "fs"
	StoreDynamoDB = "dynamodb"
)

type Server struct {
	ListenAddr       string  `mapstructure:"listen_addr" validate:"required"`
	Store            string  `mapstructure:"store" validate:"oneof=fs dynamodb"`
	OutputDir        string  `mapstructure:"output_dir" validate:"required_if=Store fs"`
	Table            string  `mapstructure:"table" validate:"required_if=Store dynamodb"`
	ParamPrefix      string  `mapstructure:"param_prefix" validate:"required_without=APIKey"`
	APIKey           string  `mapstructure:"api_key"`
	BaseURL          string  `mapstructure:"base_url" validate:"required,url"`
	Model            string  `mapstructure:"model" validate:"required"`
	MaxTokens        int     `mapstructure:"max_tokens" validate:"gte=0"`
	Temperature      float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	JSONResponse     bool    `mapstructure:"json_response"`
	Moderation       bool    `mapstructure:"moderation"`
	MaxMessages      int     `mapstructure:"max_messages" validate:"gt=0"`
	MaxContentLength int     `mapstructure:"max_content_length" validate:"gt=0"`
	MaxPromptTokens  int     `mapstructure:"max_prompt_tokens" validate:"gte=0"`
	LogLevel         string  `mapstructure:"log_level"`
	LogFormat        string  `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
}

type Client struct {
	ServerURL    string `mapstructure:"server_url" validate:"required,url"`
	SystemPrompt string `mapstructure:"system_prompt"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("store", StoreFS)
	v.SetDefault("output_dir", "generated")
	v.SetDefault("base_url", "https://api.deepseek.com")
	v.SetDefault("model", "deepseek-coder")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0)
	v.SetDefault("json_response", true)
	v.SetDefault("moderation", false)
	v.SetDefault("max_messages", 50)
	v.SetDefault("max_content_length", 20000)
	v.SetDefault("max_prompt_tokens", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("system_prompt", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// LoadServer reads server settings into v. A nil v gets a fresh instance.
// Values already Set on v take precedence over everything else.
func LoadServer(v *viper.Viper) (Server, error) {
	if v == nil {
		v = viper.New()
	}
	setServerDefaults(v)
	if err := prepare(v, "table", "param_prefix"); err != nil {
		return Server{}, err
	}
	if err := v.BindEnv("api_key", envPrefix+"_API_KEY", "DEEPSEEK_API_KEY"); err != nil {
		return Server{}, fmt.Errorf("config: bind api_key: %w", err)
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return Server{}, fmt.Errorf("config: decode server settings: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := validator.New().Struct(cfg); err != nil {
		return Server{}, fmt.Errorf("config: invalid server settings: %w", err)
	}
	return cfg, nil
}

func LoadClient(v *viper.Viper) (Client, error) {
	if v == nil {
		v = viper.New()
	}
	setClientDefaults(v)
	if err := prepare(v); err != nil {
		return Client{}, err
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return Client{}, fmt.Errorf("config: decode client settings: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Client{}, fmt.Errorf("config: invalid client settings: %w", err)
	}
	return cfg, nil
}

// prepare wires environment lookup and reads the config file named by the
// "config" key, if any. keys lists settings without a default that must still
// be visible to Unmarshal.
func prepare(v *viper.Viper, keys ...string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range append(keys, "config") {
		if err := v.BindEnv(k); err != nil {
			return fmt.Errorf("config: bind %s: %w", k, err)
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return nil
}
