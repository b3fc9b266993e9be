package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/Temutjin2k/ride-match/internal/domain/types"
	"github.com/Temutjin2k/ride-match/pkg/configparser"
)

// Flags
var (
	modeFlag = flag.String("mode", "", "application mode: ride-service | location-service")
)

// Errors
var (
	ErrModeNotProvided = errors.New("mode flag not provided")
	ErrUnknownMode     = errors.New("unknown mode")
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		Mode types.ServiceMode `ignored:"true"`

		Storage   StorageConfig
		Database  DatabaseConfig
		RabbitMQ  RabbitMQConfig
		Redis     RedisConfig
		Kafka     KafkaConfig
		Routing   RoutingConfig
		Fare      FareConfig
		Auth      Auth
		Broadcast BroadcastConfig
		Location  LocationConfig
		Services  ServicesConfig
		Log       LogConfig
	}

	StorageConfig struct {
		Driver string `envconfig:"DRIVER" default:"postgres"` // postgres | memory
	}

	DatabaseConfig struct {
		Host     string `envconfig:"HOST" default:"localhost"`
		Port     string `envconfig:"PORT" default:"5432"`
		User     string `envconfig:"USER" default:"ridematch_user"`
		Password string `envconfig:"PASSWORD" default:"ridematch_pass"`
		Database string `envconfig:"DATABASE" default:"ridematch_db"`

		MaxConns        int32         `envconfig:"MAXCONNS" default:"20"`         // максимум открытых соединений
		MinConns        int32         `envconfig:"MINCONNS" default:"2"`          // минимум соединений в пуле
		MaxConnLifetime time.Duration `envconfig:"MAXCONNLIFETIME" default:"30m"` // макс. "время жизни" соединения
		MaxConnIdleTime time.Duration `envconfig:"MAXCONNIDLETIME" default:"5m"`  // макс. "время простоя" соединения
	}

	// RabbitMQConfig - fan-out of broadcast events between ride-service instances
	RabbitMQConfig struct {
		Enabled  bool   `envconfig:"ENABLED" default:"false"`
		Host     string `envconfig:"HOST" default:"localhost"`
		Port     string `envconfig:"PORT" default:"5672"`
		User     string `envconfig:"USER" default:"guest"`
		Password string `envconfig:"PASSWORD" default:"guest"`
		Exchange string `envconfig:"EXCHANGE" default:"ride_topic"`
	}

	RedisConfig struct {
		Enabled  bool   `envconfig:"ENABLED" default:"false"`
		Addr     string `envconfig:"ADDR" default:"localhost:6379"`
		Password string `envconfig:"PASSWORD"`
		DB       int    `envconfig:"DB" default:"0"`
		GeoKey   string `envconfig:"GEO_KEY" default:"riders:locations"`
	}

	// KafkaConfig - no brokers means location samples skip the stream
	KafkaConfig struct {
		Brokers      []string      `envconfig:"BROKERS"`
		Topic        string        `envconfig:"TOPIC" default:"rider-locations"`
		Group        string        `envconfig:"GROUP" default:"ride-match-location"`
		WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"2s"`
	}

	RoutingConfig struct {
		BaseURL  string        `envconfig:"BASE_URL" default:"https://us1.locationiq.com"`
		APIKey   string        `envconfig:"API_KEY"`
		Timeout  time.Duration `envconfig:"TIMEOUT" default:"3s"`
		Fallback bool          `envconfig:"HAVERSINE_FALLBACK" default:"true"` // haversine when the provider fails
	}

	FareConfig struct {
		BaseFare    float64 `envconfig:"BASE_FARE" default:"40"`
		PerKmRate   float64 `envconfig:"PER_KM_RATE" default:"10"`
		ThresholdKm float64 `envconfig:"THRESHOLD_KM" default:"2"`
	}

	Auth struct {
		AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
		JWTSecret      string        `envconfig:"JWT_SECRET" default:"supersecretkey"`
	}

	BroadcastConfig struct {
		Buffer         int           `envconfig:"BUFFER" default:"16"`
		PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"2s"`
		AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	}

	LocationConfig struct {
		MaxAge time.Duration `envconfig:"SAMPLE_TTL" default:"2m"` // samples older than this are not served
	}

	ServicesConfig struct {
		RideService     string `envconfig:"RIDE_SERVICE" default:"3000"`
		LocationService string `envconfig:"LOCATION_SERVICE" default:"3001"`
	}

	LogConfig struct {
		Level string `envconfig:"LEVEL" default:"INFO"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c DatabaseConfig) PoolLimits() (int32, int32, time.Duration, time.Duration) {
	return c.MaxConns, c.MinConns, c.MaxConnLifetime, c.MaxConnIdleTime
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg, err := Load(filepath)
	if err != nil {
		return nil, err
	}

	// Parsing flags
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	return cfg, nil
}

// Load reads the YAML file and the environment without looking at flags.
func Load(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt secret must be set")
	}
	if c.Fare.BaseFare < 0 || c.Fare.PerKmRate < 0 || c.Fare.ThresholdKm < 0 {
		return errors.New("fare settings must not be negative")
	}
	return nil
}

func parseFlags(cfg *Config) error {
	if modeFlag == nil || *modeFlag == "" {
		return ErrModeNotProvided
	}

	cfg.Mode = types.ServiceMode(*modeFlag)
	switch cfg.Mode {
	case types.RideService, types.LocationService:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMode, cfg.Mode)
	}

	return nil
}
