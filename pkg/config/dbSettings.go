package config

type DbSettings struct {
	Type         string `mapstructure:"type" validate:"required,oneof=postgres"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	Migrate      bool   `mapstructure:"migrate"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// TokenSettings selects where Slack team access tokens are read from.
type TokenSettings struct {
	Backend    string            `mapstructure:"backend" validate:"required,oneof=postgres mongo static"`
	URI        string            `mapstructure:"uri" validate:"required_if=Backend mongo"`
	DBName     string            `mapstructure:"db_name" validate:"required_if=Backend mongo"`
	Collection string            `mapstructure:"collection"`
	Static     map[string]string `mapstructure:"static"`
}
