package generatespecification

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig(timeout time.Duration) *Config {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{Timeout: timeout}
}
