package config

import "time"

// WorkerSettings configures the periodic sweep of one queue.
type WorkerSettings struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	BatchSize    int           `mapstructure:"batch_size" validate:"gt=0"`
}

type InboxSettings struct {
	BlockActions   WorkerSettings `mapstructure:"block_actions"`
	ViewSubmission WorkerSettings `mapstructure:"view_submission"`
}

type RetrySettings struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval" validate:"gt=0"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxInterval     time.Duration `mapstructure:"max_interval" validate:"gtefield=InitialInterval"`
}

type SlackSettings struct {
	SigningSecret string `mapstructure:"signing_secret" validate:"required"`
	APIURL        string `mapstructure:"api_url" validate:"omitempty,url"`
	// Action ids and view callback ids answered with an ephemeral acknowledgement.
	AckActions []string `mapstructure:"ack_actions"`
	AckViews   []string `mapstructure:"ack_views"`
	AckText    string   `mapstructure:"ack_text"`
}

type HTTPSettings struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}
