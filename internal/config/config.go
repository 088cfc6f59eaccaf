package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. It is built once in main and
// handed to constructors; nothing reads the environment after startup.
type Config struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	Port           string   `env:"APP_PORT" envDefault:"3001"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	BodyLimit      string   `env:"BODY_LIMIT" envDefault:"10M"`

	Database Database `envPrefix:"DB_"`
	JWT      JWT
	Refresh  Refresh
	Password Password

	Redis         RedisConfig     `envPrefix:"REDIS_"`
	RateLimit     RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	AuthRateLimit RateLimitConfig `envPrefix:"AUTH_RATE_LIMIT_"`
	Cache         CacheConfig     `envPrefix:"CACHE_"`
	AMQP          AMQP            `envPrefix:"AMQP_"`
}

// Database holds MySQL connection parameters.
type Database struct {
	User string `env:"USER" envDefault:"cafe"`
	Pass string `env:"PASS"`
	Host string `env:"HOST" envDefault:"localhost"`
	Port string `env:"PORT" envDefault:"3306"`
	Name string `env:"NAME" envDefault:"cafe_backend"`
}

// JWT configures access tokens. The secret is mandatory.
type JWT struct {
	Secret    string        `env:"JWT_SECRET,required,notEmpty"`
	ExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"cafe-backend"`
	Audience  string        `env:"JWT_AUDIENCE" envDefault:"cafe-frontend"`
	Leeway    time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`
}

// Refresh configures refresh tokens. The secret must differ from JWT.Secret.
type Refresh struct {
	Secret    string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	ExpiresIn time.Duration `env:"REFRESH_TOKEN_EXPIRES_IN" envDefault:"7d"`
}

// Password configures bcrypt hashing.
type Password struct {
	BcryptCost  int `env:"BCRYPT_COST" envDefault:"12"`
	HashWorkers int `env:"HASH_WORKERS" envDefault:"0"` // 0 means runtime.NumCPU()
}

// AMQP configures the account event broker. An empty URL disables publishing.
type AMQP struct {
	URL             string `env:"URL"`
	Queue           string `env:"QUEUE" envDefault:"user.registered"`
	ConsumerEnabled bool   `env:"CONSUMER_ENABLED" envDefault:"false"`
	AuditLogPath    string `env:"AUDIT_LOG_PATH" envDefault:"logs/accounts.log"`
}

// IsDevelopment reports whether internal error detail may be shown to clients.
func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads an optional .env file and parses the environment into Config.
// A missing JWT_SECRET or REFRESH_TOKEN_SECRET is an error; callers treat
// any error here as fatal.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current process environment only.
func Parse() (Config, error) {
	cfg := Config{
		RateLimit:     DefaultRateLimitConfig(),
		AuthRateLimit: DefaultAuthRateLimitConfig(),
		Cache:         DefaultCacheConfig(),
	}
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return ParseDuration(v)
			},
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.JWT.Secret == cfg.Refresh.Secret {
		return Config{}, errors.New("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	cfg.RateLimit = cfg.RateLimit.normalize()
	cfg.AuthRateLimit = cfg.AuthRateLimit.normalize()
	return cfg, nil
}

// ParseDuration accepts Go duration strings plus a whole-day suffix ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
