package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when ASSESSOR_CONFIG_FILE is not set.
const DefaultConfigFile = "config.ini"

// Config holds resolved runtime configuration for the assessor.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	CORSOrigins string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	ChannelBase string
	JWTSecret   string
	BatchJobTTL time.Duration

	AIProvider         string
	APIKey             string
	APIBaseURL         string
	DefaultModel       string
	DefaultTemperature float64
	MaxOutputTokens    int
	RequestTimeout     time.Duration

	SystemPromptPath string
	UserPromptPath   string
	SupportFolder    string
	OutputFolder     string

	MaxWorkers         int
	DocumentExtensions []string

	Models ModelTable

	settings *Settings
}

// Settings exposes the section/key view used by the grading core and the CLI.
func (c Config) Settings() *Settings {
	if c.settings == nil {
		return NewSettings(newViper())
	}
	return c.settings
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration from the optional INI file, environment variables and .env.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := newViper()

	path := v.GetString("config_file")
	if path == "" {
		path = DefaultConfigFile
	}
	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ASSESSOR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("api.key", "ASSESSOR_API_KEY", "OPENAI_API_KEY")

	v.SetDefault("app.name", "GEMA Assessor")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("http.corsorigins", "*")
	v.SetDefault("database.url", "assessor.db")
	v.SetDefault("channel.base", "assessor")
	v.SetDefault("batch.job_ttl", "24h")
	v.SetDefault("api.provider", "openai")
	v.SetDefault("api.defaultmodel", "GPT-4")
	v.SetDefault("api.temperature", 0.7)
	v.SetDefault("api.maxtokens", 3500)
	v.SetDefault("api.timeout", "0s")
	v.SetDefault("grading.maxworkers", 1)
	v.SetDefault("grading.extensions", ".docx")
	for key, id := range DefaultModels() {
		v.SetDefault("models."+strings.ToLower(key), id)
	}

	return v
}

func readConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}

	v.SetConfigFile(path)
	if strings.HasSuffix(strings.ToLower(path), ".ini") {
		v.SetConfigType("ini")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (Config, error) {
	ttl, err := time.ParseDuration(v.GetString("batch.job_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid batch job ttl: %w", err)
	}

	timeout, err := time.ParseDuration(v.GetString("api.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid api timeout: %w", err)
	}

	settings := NewSettings(v)

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		CORSOrigins:        v.GetString("http.corsorigins"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		ChannelBase:        v.GetString("channel.base"),
		JWTSecret:          v.GetString("jwt.secret"),
		BatchJobTTL:        ttl,
		AIProvider:         strings.ToLower(v.GetString("api.provider")),
		APIKey:             v.GetString("api.key"),
		APIBaseURL:         v.GetString("api.baseurl"),
		DefaultModel:       v.GetString("api.defaultmodel"),
		DefaultTemperature: settings.GetFloat("API", "Temperature", 0.7),
		MaxOutputTokens:    v.GetInt("api.maxtokens"),
		RequestTimeout:     timeout,
		SystemPromptPath:   v.GetString("paths.systempromptpath"),
		UserPromptPath:     v.GetString("paths.userpromptpath"),
		SupportFolder:      v.GetString("paths.supportfolder"),
		OutputFolder:       v.GetString("paths.outputfolder"),
		MaxWorkers:         v.GetInt("grading.maxworkers"),
		DocumentExtensions: splitList(v.GetString("grading.extensions")),
		Models:             modelsFrom(v),
		settings:           settings,
	}

	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 3500
	}

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	if cfg.BatchJobTTL <= 0 {
		cfg.BatchJobTTL = 24 * time.Hour
	}

	return cfg, nil
}

// modelsFrom merges the [Models] section over the built-in defaults.
func modelsFrom(v *viper.Viper) ModelTable {
	entries := make(map[string]string)
	for _, key := range v.AllKeys() {
		if name, found := strings.CutPrefix(key, "models."); found {
			entries[name] = v.GetString(key)
		}
	}
	return NewModelTable(entries)
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
