package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FlowTwoStep = "two_step"
	FlowInstant = "instant"

	DeliveryDirect = "direct"
	DeliveryQueue  = "queue"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Mail     MailConfig     `yaml:"mail"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	Flow                 string `yaml:"flow"`
	HoldTTLMinutes       int    `yaml:"hold_ttl_minutes"`
	FlightsCacheTTL      int    `yaml:"flights_cache_ttl_seconds"`
	CancellationWindow   int    `yaml:"cancellation_window_hours"`
	PartialRefundPercent int    `yaml:"partial_refund_percent"`
	NotificationTimeout  int    `yaml:"notification_timeout_seconds"`
	SigningSecret        string `yaml:"signing_secret"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (b BookingConfig) FlightsCacheDuration() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

func (b BookingConfig) CancellationWindowDuration() time.Duration {
	return time.Duration(b.CancellationWindow) * time.Hour
}

func (b BookingConfig) NotificationTimeoutDuration() time.Duration {
	return time.Duration(b.NotificationTimeout) * time.Second
}

type MailConfig struct {
	Delivery    string `yaml:"delivery"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	UseSSL      bool   `yaml:"use_ssl"`
	From        string `yaml:"from"`
	LogoPath    string `yaml:"logo_path"`
	TimeoutSecs int    `yaml:"timeout_seconds"`
}

type WorkerConfig struct {
	ExpirationSchedule string `yaml:"expiration_schedule"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML, fills defaults and applies secret overrides from the
// environment.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.BookingTopic == "" {
		c.Kafka.BookingTopic = "booking-events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "booking-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "travelgo-worker"
	}
	if c.Booking.Flow == "" {
		c.Booking.Flow = FlowTwoStep
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		c.Booking.HoldTTLMinutes = 15
	}
	if c.Booking.FlightsCacheTTL <= 0 {
		c.Booking.FlightsCacheTTL = 60
	}
	if c.Booking.CancellationWindow <= 0 {
		c.Booking.CancellationWindow = 4
	}
	if c.Booking.PartialRefundPercent <= 0 {
		c.Booking.PartialRefundPercent = 70
	}
	if c.Booking.NotificationTimeout <= 0 {
		c.Booking.NotificationTimeout = 10
	}
	if c.Mail.Delivery == "" {
		c.Mail.Delivery = DeliveryDirect
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 465
	}
	if c.Mail.TimeoutSecs <= 0 {
		c.Mail.TimeoutSecs = 10
	}
	if c.Worker.ExpirationSchedule == "" {
		c.Worker.ExpirationSchedule = "@every 5m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup("DATABASE_PASSWORD"); ok && v != "" {
		c.Database.Password = v
	}
	if v, ok := lookup("SMTP_PASSWORD"); ok && v != "" {
		c.Mail.Password = v
	}
	if v, ok := lookup("PAYMENT_SIGNING_SECRET"); ok && v != "" {
		c.Booking.SigningSecret = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Booking.Flow {
	case FlowTwoStep, FlowInstant:
	default:
		errs = append(errs, fmt.Errorf("booking.flow must be %q or %q, got %q", FlowTwoStep, FlowInstant, c.Booking.Flow))
	}
	switch c.Mail.Delivery {
	case DeliveryDirect, DeliveryQueue:
	default:
		errs = append(errs, fmt.Errorf("mail.delivery must be %q or %q, got %q", DeliveryDirect, DeliveryQueue, c.Mail.Delivery))
	}
	if c.Booking.PartialRefundPercent > 100 {
		errs = append(errs, errors.New("booking.partial_refund_percent must not exceed 100"))
	}
	if c.Mail.Delivery == DeliveryQueue && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("mail.delivery=queue requires kafka.brokers"))
	}
	return errors.Join(errs...)
}
