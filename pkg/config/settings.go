package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	configName = "reviewbot"
	envPrefix  = "REVIEWBOT"
)

type Settings struct {
	Database               DbSettings     `mapstructure:"database"`
	Tokens                 TokenSettings  `mapstructure:"tokens"`
	Broker                 BrokerSettings `mapstructure:"broker"`
	Slack                  SlackSettings  `mapstructure:"slack"`
	HTTP                   HTTPSettings   `mapstructure:"http"`
	Inbox                  InboxSettings  `mapstructure:"inbox"`
	Outbox                 WorkerSettings `mapstructure:"outbox"`
	Retry                  RetrySettings  `mapstructure:"retry"`
	ProcessingTimeout      time.Duration  `mapstructure:"processing_timeout" validate:"gt=0"`
	FailureReasonMaxLength int            `mapstructure:"failure_reason_max_length" validate:"gt=0"`
	Log                    LogSettings    `mapstructure:"log"`
	Observability          Observability  `mapstructure:"observability"`
}

func (c *Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Observability.Enabled && c.Observability.TracingURL == "" {
		return errors.New("observability.tracing_url is required when tracing is enabled")
	}
	return nil
}

// LoadFromFile reads reviewbot.yaml from filePath (or the working directory),
// merges reviewbot.<ENVIRONMENT>.yaml over it and applies REVIEWBOT_ environment
// overrides. Missing files are tolerated; the result must still validate.
func LoadFromFile(filePath string) (*Settings, error) {
	env := getEnvWithDefaultLookup("ENVIRONMENT", "development")

	setDefaults()
	viper.SetConfigType("yaml")
	viper.SetConfigName(configName)
	viper.AddConfigPath(filePath)
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := mergeConfig(filePath, configName+"."+env); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("merge %s config: %w", env, err)
		}
	}

	cfg := &Settings{}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("load from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Settings) LoadFromEnv() error {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // env vars like REVIEWBOT_DATABASE_DSN

	// Keys without a default are unknown to viper until bound.
	for _, key := range []string{
		"database.dsn",
		"tokens.uri",
		"tokens.db_name",
		"broker.url",
		"broker.project_id",
		"broker.dead_letter_topic",
		"slack.signing_secret",
		"slack.api_url",
		"observability.tracing_url",
	} {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}

	return viper.Unmarshal(c)
}

func setDefaults() {
	viper.SetDefault("database.type", "postgres")
	viper.SetDefault("database.migrate", true)
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("tokens.backend", "postgres")
	viper.SetDefault("tokens.collection", "slack_installations")
	viper.SetDefault("broker.type", "none")
	viper.SetDefault("broker.pool_size", 4)
	viper.SetDefault("slack.ack_text", "Got it, we are on it.")
	viper.SetDefault("http.address", ":8080")
	viper.SetDefault("http.read_timeout", 5*time.Second)
	viper.SetDefault("http.write_timeout", 10*time.Second)
	viper.SetDefault("http.shutdown_timeout", 15*time.Second)
	for _, section := range []string{"inbox.block_actions", "inbox.view_submission", "outbox"} {
		viper.SetDefault(section+".enabled", true)
		viper.SetDefault(section+".poll_interval", 5*time.Second)
		viper.SetDefault(section+".batch_size", 50)
	}
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_interval", 500*time.Millisecond)
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.max_interval", 10*time.Second)
	viper.SetDefault("processing_timeout", 5*time.Minute)
	viper.SetDefault("failure_reason_max_length", 1000)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("observability.service_name", "reviewbot")
	viper.SetDefault("observability.sample_ratio", 1.0)
	viper.SetDefault("observability.enabled", false)
}

func mergeConfig(path string, name string) error {
	viper.SetConfigName(name)
	viper.AddConfigPath(path)
	return viper.MergeInConfig()
}

func getEnvWithDefaultLookup(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
