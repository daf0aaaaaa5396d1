package config

// BrokerSettings holds configuration for the dead-letter publisher.
type BrokerSettings struct {
	Type            string `mapstructure:"type" validate:"required,oneof=none rabbitmq gcp-pubsub"`
	URL             string `mapstructure:"url" validate:"required_if=Type rabbitmq"`
	Exchange        string `mapstructure:"exchange"`
	ProjectID       string `mapstructure:"project_id" validate:"required_if=Type gcp-pubsub"` // GCP Pub/Sub only
	PoolSize        int    `mapstructure:"pool_size" validate:"gte=0"`                         // RabbitMQ only
	DeadLetterTopic string `mapstructure:"dead_letter_topic" validate:"required_unless=Type none"`
}
