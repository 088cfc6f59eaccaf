package config

import "time"

// RateLimitConfig drives the Redis token bucket. Fields carry no envDefault
// tags so the same struct can be parsed under two prefixes with different
// defaults; see DefaultRateLimitConfig and DefaultAuthRateLimitConfig.
type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED"`
	Capacity       int           `env:"CAPACITY"`
	RefillTokens   int           `env:"REFILL_TOKENS"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL"`
	TTL            time.Duration `env:"TTL"`
	KeyStrategy    string        `env:"KEY_STRATEGY"`
	Prefix         string        `env:"PREFIX"`
	Debug          bool          `env:"DEBUG"`

	// Code and Message shape the 429 body.
	Code    string
	Message string
}

// DefaultRateLimitConfig allows 100 requests per 15 minutes per IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        true,
		Capacity:       100,
		RefillTokens:   1,
		RefillInterval: 9 * time.Second,
		TTL:            15 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
		Code:           "RATE_LIMIT_EXCEEDED",
		Message:        "Too many requests, please try again later",
	}
}

// DefaultAuthRateLimitConfig allows 5 register/login attempts per 15 minutes
// per IP and route.
func DefaultAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: 3 * time.Minute,
		TTL:            15 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:auth",
		Code:           "AUTH_RATE_LIMIT_EXCEEDED",
		Message:        "Too many authentication attempts, please try again later",
	}
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
	return c
}
