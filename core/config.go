package core

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	LockTTL        time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "webhook-registrar",
		RequestTimeout: defaultRequestTimeout,
		LockTTL:        defaultRegistrationLockTTL,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	if c.LockTTL < 0 {
		return fmt.Errorf("core: lock_ttl must not be negative")
	}
	return nil
}
