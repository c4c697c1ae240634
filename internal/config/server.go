package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	// PostgresDSN is optional; when empty the server runs on the in-memory
	// store, which is fine for local play and tests but loses state on exit.
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	DisconnectGraceMS int `env:"DISCONNECT_GRACE_MS" envDefault:"3000"`
	JanitorIntervalMS int `env:"JANITOR_INTERVAL_MS" envDefault:"1000"`
	StoreTimeoutMS    int `env:"STORE_TIMEOUT_MS" envDefault:"5000"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
