package config

import "time"

type Client struct {
	BaseURL string        `env:"IC_SERVER_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"IC_CLIENT_TIMEOUT" envDefault:"30s"`
	Retries int           `env:"IC_CLIENT_RETRIES" envDefault:"2"`
}
