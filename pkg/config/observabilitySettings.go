package config

type Observability struct {
	ServiceName string  `mapstructure:"service_name" validate:"required"`
	// TracingURL is the OTLP/HTTP collector endpoint, e.g. http://otel-collector:4318.
	TracingURL  string  `mapstructure:"tracing_url" validate:"omitempty,url"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
	Enabled     bool    `mapstructure:"enabled"`
}

type LogSettings struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}
