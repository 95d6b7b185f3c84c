package config

import (
	"errors"
	"fmt"
	"time"
)

// BackoffConfig configures the pause between retries.
type BackoffConfig struct {
	BaseDelay time.Duration `envconfig:"BASE_DELAY" default:"100ms" validate:"min=1ms"`
	MaxDelay  time.Duration `envconfig:"MAX_DELAY" default:"2s" validate:"min=1ms"`
	Factor    float64       `envconfig:"FACTOR" default:"2.0" validate:"gte=1"`
}

// Validate checks relations between the backoff fields.
func (b *BackoffConfig) Validate() error {
	if b.MaxDelay < b.BaseDelay {
		return fmt.Errorf("backoff max delay (%s) must not be below the base delay (%s)", b.MaxDelay, b.BaseDelay)
	}
	return nil
}

// CacheConfig configures the local result cache.
type CacheConfig struct {
	Enabled   bool          `envconfig:"ENABLED" default:"false"`
	MaxSize   int           `envconfig:"MAX_SIZE" default:"100"`
	TTL       time.Duration `envconfig:"TTL" default:"5s"`
	Algorithm string        `envconfig:"ALGORITHM" default:"lru" validate:"oneof=lru s3fifo"`
}

// Validate only checks size and ttl when the cache is enabled.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("cache max size must be at least 1, got %d", c.MaxSize)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	}
	return nil
}

// TLSConfig holds file paths and flags of the TLS connection to the API.
type TLSConfig struct {
	CACertPath               string `envconfig:"CA_CERT_PATH"`
	CACertData               string `envconfig:"CA_CERT_DATA"`
	ClientCertPath           string `envconfig:"CLIENT_CERT_PATH"`
	ClientKeyPath            string `envconfig:"CLIENT_KEY_PATH"`
	ServerName               string `envconfig:"SERVER_NAME"`
	SkipHostnameVerification bool   `envconfig:"SKIP_HOSTNAME_VERIFICATION" default:"false"`
	Insecure                 bool   `envconfig:"INSECURE" default:"false"`
}

// IsConfigured reports whether any TLS option is set.
func (t *TLSConfig) IsConfigured() bool {
	return *t != TLSConfig{}
}

// Validate checks that mutual TLS material comes in pairs.
func (t *TLSConfig) Validate() error {
	if (t.ClientCertPath == "") != (t.ClientKeyPath == "") {
		return errors.New("tls client certificate and key must be set together")
	}
	return nil
}
