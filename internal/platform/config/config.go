package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"AGENDA_ADDR"             envDefault:":3002"`
	Environment     string        `env:"AGENDA_ENV"              envDefault:"dev"`
	LogLevel        string        `env:"LOG_LEVEL"               envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"        envDefault:"15s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT"         envDefault:"30s"`
	RateLimitRPS    float64       `env:"HTTP_RATE_LIMIT_RPS"     envDefault:"50"`
	RateLimitBurst  int           `env:"HTTP_RATE_LIMIT_BURST"   envDefault:"100"`

	Auth      Auth      `envPrefix:"AUTH_"`
	Directory Directory `envPrefix:"DIRECTORY_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Retention Retention `envPrefix:"RETENTION_"`
	Realtime  Realtime  `envPrefix:"REALTIME_"`
}

// Auth configures session token verification. The directory service signs
// tokens with the same key.
type Auth struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer        string        `env:"ISSUER"          envDefault:"agenda-directory"`
	TokenTTL      time.Duration `env:"TOKEN_TTL"       envDefault:"1h"`
}

// Directory configures the identity directory client and its circuit breaker.
type Directory struct {
	URL              string        `env:"URL"               envDefault:"http://localhost:3001"`
	Timeout          time.Duration `env:"TIMEOUT"           envDefault:"3s"`
	FailureThreshold float64       `env:"FAILURE_THRESHOLD" envDefault:"50"`
	Window           time.Duration `env:"WINDOW"            envDefault:"10s"`
	MinRequests      int           `env:"MIN_REQUESTS"      envDefault:"5"`
	CoolDown         time.Duration `env:"COOL_DOWN"         envDefault:"10s"`
	LookupParallel   int           `env:"LOOKUP_PARALLEL"   envDefault:"8"`
}

// Database configures Postgres. An empty URL selects the in-memory stores.
type Database struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE"      envDefault:"true"`
}

// Redis enables the cross-replica notification relay when URL is set.
type Redis struct {
	URL     string `env:"URL"`
	Channel string `env:"CHANNEL" envDefault:"agenda:notifications"`
}

// Kafka enables lifecycle event publishing when Brokers is set.
type Kafka struct {
	Brokers         []string      `env:"BROKERS"          envSeparator:","`
	Topic           string        `env:"TOPIC"            envDefault:"agenda.event-lifecycle"`
	Acks            string        `env:"ACKS"             envDefault:"all"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
}

// Retention configures the expired event sweep.
type Retention struct {
	Window     time.Duration `env:"WINDOW"       envDefault:"720h"`
	Interval   time.Duration `env:"INTERVAL"     envDefault:"24h"`
	RunOnStart bool          `env:"RUN_ON_START" envDefault:"false"`
}

// Realtime configures websocket connections.
type Realtime struct {
	FramesPerSecond float64       `env:"FRAMES_PER_SECOND" envDefault:"10"`
	Burst           int           `env:"BURST"             envDefault:"20"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"     envDefault:"5s"`
}

// FromEnv loads an optional .env file, then parses the environment.
func FromEnv() (Server, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) IsProduction() bool {
	return s.Environment == "prod" || s.Environment == "production"
}

// Validate rejects settings the process cannot run with.
func (s Server) Validate() error {
	var errs []error
	if s.IsProduction() && s.Auth.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("AUTH_JWT_SIGNING_KEY must be set in production"))
	}
	if s.Directory.URL == "" {
		errs = append(errs, errors.New("DIRECTORY_URL is required"))
	}
	if s.Directory.FailureThreshold <= 0 || s.Directory.FailureThreshold > 100 {
		errs = append(errs, errors.New("DIRECTORY_FAILURE_THRESHOLD must be in (0, 100]"))
	}
	if s.Retention.Window <= 0 || s.Retention.Interval <= 0 {
		errs = append(errs, errors.New("RETENTION_WINDOW and RETENTION_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
