package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultPort                  = 8080
	defaultMaxConcurrentRequests = 6
	defaultCacheCapacityBytes    = 256 << 20
)

type Config struct {
	upstreamURLTemplate   string
	sentryDSN             string
	port                  int
	maxConcurrentRequests int
	cacheCapacityBytes    uint64
	env                   environment
}

// UpstreamURLTemplate is the XYZ tile URL template with {layer}, {z}, {x}
// and {y} placeholders.
func (c *Config) UpstreamURLTemplate() string {
	return c.upstreamURLTemplate
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() int {
	return c.port
}

func (c *Config) MaxConcurrentRequests() int {
	return c.maxConcurrentRequests
}

func (c *Config) CacheCapacityBytes() uint64 {
	return c.cacheCapacityBytes
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %d, maxConcurrentRequests: %d, cacheCapacityBytes: %d, ...}",
		string(c.env), c.port, c.maxConcurrentRequests, c.cacheCapacityBytes,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("TILELIGHT_ENVIRONMENT")
	if !ok {
		return missingKey("TILELIGHT_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: TILELIGHT_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	upstreamURLTemplate := os.Getenv("UPSTREAM_URL_TEMPLATE")
	sentryDSN := os.Getenv("SENTRY_DSN")

	if env == production || env == staging {
		if upstreamURLTemplate == "" {
			return missingKey("UPSTREAM_URL_TEMPLATE")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	port := defaultPort
	if rawPort := os.Getenv("PORT"); rawPort != "" {
		parsed, err := strconv.Atoi(rawPort)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: PORT (%s)", ErrInvalidValue, rawPort)
		}
		port = parsed
	}

	maxConcurrentRequests := defaultMaxConcurrentRequests
	if rawMax := os.Getenv("MAX_CONCURRENT_REQUESTS"); rawMax != "" {
		parsed, err := strconv.Atoi(rawMax)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: MAX_CONCURRENT_REQUESTS (%s)", ErrInvalidValue, rawMax)
		}
		maxConcurrentRequests = parsed
	}

	cacheCapacityBytes := uint64(defaultCacheCapacityBytes)
	if rawCapacity := os.Getenv("CACHE_CAPACITY_BYTES"); rawCapacity != "" {
		parsed, err := strconv.ParseUint(rawCapacity, 10, 64)
		if err != nil || parsed == 0 {
			return Config{}, fmt.Errorf("%w: CACHE_CAPACITY_BYTES (%s)", ErrInvalidValue, rawCapacity)
		}
		cacheCapacityBytes = parsed
	}

	return Config{
		upstreamURLTemplate:   upstreamURLTemplate,
		sentryDSN:             sentryDSN,
		port:                  port,
		maxConcurrentRequests: maxConcurrentRequests,
		cacheCapacityBytes:    cacheCapacityBytes,
		env:                   env,
	}, nil
}
