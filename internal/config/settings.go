package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings carries configuration for every worker process. All values are
// optional environment variables with defaults; a .env file in the working
// directory is honored when present.
type Settings struct {
	Environment          string `mapstructure:"environment"`
	LogLevel             string `mapstructure:"log_level"`
	RedisURL             string `mapstructure:"redis_url"`
	EnableProactiveRules bool   `mapstructure:"enable_proactive_rules"`

	GatewayHost string `mapstructure:"gateway_host"`
	GatewayPort int    `mapstructure:"gateway_port"`

	WhisperURL    string `mapstructure:"whisper_url"`
	WhisperModel  string `mapstructure:"whisper_model"`
	WhisperDevice string `mapstructure:"whisper_device"`

	VADServiceURL string  `mapstructure:"vad_service_url"`
	VADThreshold  float64 `mapstructure:"vad_threshold"`

	LLMBackend string `mapstructure:"llm_backend"`
	OllamaURL  string `mapstructure:"ollama_url"`
	LLMModel   string `mapstructure:"llm_model"`

	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	PiperURL       string `mapstructure:"piper_url"`
	PiperVoice     string `mapstructure:"piper_voice"`
	PiperModelPath string `mapstructure:"piper_model_path"`

	DatabasePath    string `mapstructure:"database_path"`
	RulesConfigPath string `mapstructure:"rules_config_path"`
}

func (s Settings) IsDevelopment() bool {
	return s.Environment == "development"
}

func (s Settings) Debug() bool {
	return s.IsDevelopment() || strings.EqualFold(s.LogLevel, "DEBUG")
}

// Load reads settings from the environment, with a .env file as a lower
// precedence source. Missing variables fall back to defaults.
func Load() (*Settings, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("redis_url", "redis://localhost:6379")
	v.SetDefault("enable_proactive_rules", true)

	v.SetDefault("gateway_host", "0.0.0.0")
	v.SetDefault("gateway_port", 8080)

	v.SetDefault("whisper_url", "http://localhost:9000")
	v.SetDefault("whisper_model", "tiny.en")
	v.SetDefault("whisper_device", "cpu")

	v.SetDefault("vad_service_url", "http://localhost:8001")
	v.SetDefault("vad_threshold", 0.5)

	v.SetDefault("llm_backend", "ollama")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("llm_model", "qwen2:0.5b")

	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")

	v.SetDefault("piper_url", "http://localhost:5000")
	v.SetDefault("piper_voice", "en_US-lessac-medium")
	v.SetDefault("piper_model_path", "/app/models")

	v.SetDefault("database_path", "./data/hearth.db")
	v.SetDefault("rules_config_path", "./config/rules/default_rules.yaml")

	// Bind every key so AutomaticEnv sees unprefixed variable names.
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}
