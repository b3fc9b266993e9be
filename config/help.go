package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const HelpMessage = `
Ride-Match

Usage:
  ride -mode=<ride-service|location-service> [-config-path=config.yaml]

Modes:
  ride-service       ride lifecycle, matching, applications and the /ws broadcaster
  location-service   consumes rider location samples from Kafka into Redis

Configuration is read from the YAML file and the environment, environment wins.
Nested keys map to variables: database.host -> DATABASE_HOST.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// PrintConfig prints the effective configuration with secrets masked.
func PrintConfig(cfg *Config) {
	WriteConfig(os.Stdout, cfg)
}

func WriteConfig(w io.Writer, cfg *Config) {
	fmt.Fprintf(w, "mode:              %s\n", cfg.Mode)
	fmt.Fprintf(w, "storage.driver:    %s\n", cfg.Storage.Driver)
	fmt.Fprintf(w, "database:          %s@%s:%s/%s (password %s)\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database, mask(cfg.Database.Password))
	fmt.Fprintf(w, "rabbitmq:          enabled=%t %s:%s exchange=%s\n", cfg.RabbitMQ.Enabled, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.Exchange)
	fmt.Fprintf(w, "redis:             enabled=%t %s db=%d\n", cfg.Redis.Enabled, cfg.Redis.Addr, cfg.Redis.DB)
	fmt.Fprintf(w, "kafka:             brokers=%s topic=%s group=%s\n", strings.Join(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic, cfg.Kafka.Group)
	fmt.Fprintf(w, "routing:           %s key=%s timeout=%s fallback=%t\n", cfg.Routing.BaseURL, mask(cfg.Routing.APIKey), cfg.Routing.Timeout, cfg.Routing.Fallback)
	fmt.Fprintf(w, "fare:              base=%.2f per_km=%.2f threshold_km=%.2f\n", cfg.Fare.BaseFare, cfg.Fare.PerKmRate, cfg.Fare.ThresholdKm)
	fmt.Fprintf(w, "auth:              ttl=%s secret=%s\n", cfg.Auth.AccessTokenTTL, mask(cfg.Auth.JWTSecret))
	fmt.Fprintf(w, "broadcast:         buffer=%d publish_timeout=%s\n", cfg.Broadcast.Buffer, cfg.Broadcast.PublishTimeout)
	fmt.Fprintf(w, "location.ttl:      %s\n", cfg.Location.MaxAge)
	fmt.Fprintf(w, "services:          ride=%s location=%s\n", cfg.Services.RideService, cfg.Services.LocationService)
	fmt.Fprintf(w, "log.level:         %s\n", cfg.Log.Level)
}

func mask(s string) string {
	if s == "" {
		return "<empty>"
	}
	return "****"
}
