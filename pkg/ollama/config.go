package ollama

import (
	"errors"
	"time"
)

// Config configures a Client.
type Config struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Timeout bounds one call. For Chat that is the whole stream.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// CircuitFailureThreshold consecutive failures open the breaker; zero
	// disables it.
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset" json:"circuit_reset"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:                 "http://localhost:11434",
		Timeout:                 2 * time.Minute,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("ollama: base url is required")
	}
	if c.CircuitFailureThreshold > 0 && c.CircuitReset <= 0 {
		return errors.New("ollama: circuit reset must be positive when the breaker is enabled")
	}
	return nil
}
