package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medeasy/marketplace/internal/commission"
)

// Config holds application configuration values.
type Config struct {
	AppEnv       string
	Secret       string
	DatabaseDSN  string
	HTTPPort     string
	CatalogCSV   string
	AllowOrigins []string
	Logger       LoggerConfig
	Commission   CommissionConfig
	OCR          OCRConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// CommissionConfig is the single source of commission rates. Empty
// per-kind rates fall back to Rate.
type CommissionConfig struct {
	Rate            string
	OrderRate       string
	AppointmentRate string
	LabBookingRate  string
	DeliveryRate    string
	Tiers           string
	DeliveryFee     string
}

type OCRConfig struct {
	ServiceURL string
	APIKey     string
	Timeout    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	port := getEnv("HTTP_PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		port = "8080"
	}

	return Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Secret:       getEnv("SECRET", "dev_secret"),
		DatabaseDSN:  getEnv("DATABASE_DSN", "file:medeasy.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"),
		HTTPPort:     port,
		CatalogCSV:   getEnv("MEDICINE_CATALOG_CSV", "assets/medicine.csv"),
		AllowOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "json"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Commission: CommissionConfig{
			Rate:            getEnv("COMMISSION_RATE", "0.05"),
			OrderRate:       getEnv("COMMISSION_RATE_ORDER", ""),
			AppointmentRate: getEnv("COMMISSION_RATE_APPOINTMENT", ""),
			LabBookingRate:  getEnv("COMMISSION_RATE_LAB_BOOKING", ""),
			DeliveryRate:    getEnv("COMMISSION_RATE_DELIVERY", ""),
			Tiers:           getEnv("COMMISSION_TIERS", ""),
			DeliveryFee:     getEnv("DELIVERY_FEE", "50"),
		},
		OCR: OCRConfig{
			ServiceURL: getEnv("OCR_SERVICE_URL", "http://localhost:8000"),
			APIKey:     getEnv("OCR_API_KEY", ""),
			Timeout:    time.Duration(getEnvInt("OCR_TIMEOUT_SECONDS", 120)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvInt("INVENTORY_CACHE_TTL_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC_NOTIFICATIONS", "marketplace.notifications"),
		},
	}
}

// IsDevelopment reports whether APP_ENV selects development mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// Schedule turns the configured rates into a validated commission schedule.
func (c CommissionConfig) Schedule() (commission.Schedule, error) {
	def, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return commission.Schedule{}, fmt.Errorf("invalid COMMISSION_RATE %q: %w", c.Rate, err)
	}
	s := commission.Schedule{Default: def, Overrides: map[commission.Kind]decimal.Decimal{}}

	overrides := map[commission.Kind]string{
		commission.KindOrder:       c.OrderRate,
		commission.KindAppointment: c.AppointmentRate,
		commission.KindLabBooking:  c.LabBookingRate,
		commission.KindDelivery:    c.DeliveryRate,
	}
	for kind, raw := range overrides {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return commission.Schedule{}, fmt.Errorf("invalid %s commission rate %q: %w", kind, raw, err)
		}
		s.Overrides[kind] = rate
	}

	if s.Tiers, err = commission.ParseTiers(c.Tiers); err != nil {
		return commission.Schedule{}, err
	}
	if err := s.Validate(); err != nil {
		return commission.Schedule{}, err
	}
	return s, nil
}

// Fee parses DELIVERY_FEE.
func (c CommissionConfig) Fee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.DeliveryFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid DELIVERY_FEE %q: %w", c.DeliveryFee, err)
	}
	return fee, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
