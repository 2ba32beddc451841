package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type ScraperConfig struct {
	BaseDomain      string
	UserAgent       string
	FetchTimeout    time.Duration
	ImageTimeout    time.Duration
	CrawlDelayMin   time.Duration
	CrawlDelayMax   time.Duration
	MaxPages        int
	MaxImages       int
	// ExchangeRateCNYRUB gates price plausibility: values below the
	// target-currency window are treated as yuan quotes and multiplied by
	// this rate. There is no refresh mechanism; override via env when the
	// rate drifts.
	ExchangeRateCNYRUB float64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr   string
	Stream string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getStringSliceOrDefault("CORS_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			BaseDomain:         getEnvOrDefault("SCRAPER_BASE_DOMAIN", "https://thepoizon.ru"),
			UserAgent:          getEnvOrDefault("SCRAPER_USER_AGENT", defaultUserAgent),
			FetchTimeout:       getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 30*time.Second),
			ImageTimeout:       getDurationOrDefault("SCRAPER_IMAGE_TIMEOUT", 10*time.Second),
			CrawlDelayMin:      getDurationOrDefault("SCRAPER_CRAWL_DELAY_MIN", 1*time.Second),
			CrawlDelayMax:      getDurationOrDefault("SCRAPER_CRAWL_DELAY_MAX", 3*time.Second),
			MaxPages:           getIntOrDefault("SCRAPER_MAX_PAGES", 50),
			MaxImages:          getIntOrDefault("SCRAPER_MAX_IMAGES", 10),
			ExchangeRateCNYRUB: getFloatOrDefault("EXCHANGE_RATE_CNY_RUB", 12.5),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "shop"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:   getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Stream: getEnvOrDefault("REDIS_STREAM", "stream:product_ingested"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.ExchangeRateCNYRUB <= 0 {
		return fmt.Errorf("EXCHANGE_RATE_CNY_RUB must be positive")
	}

	if c.Scraper.CrawlDelayMin > c.Scraper.CrawlDelayMax {
		return fmt.Errorf("SCRAPER_CRAWL_DELAY_MIN cannot be greater than SCRAPER_CRAWL_DELAY_MAX")
	}

	if c.Scraper.MaxPages < 1 || c.Scraper.MaxPages > 50 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be between 1 and 50")
	}

	if c.Scraper.MaxImages < 0 || c.Scraper.MaxImages > 10 {
		return fmt.Errorf("SCRAPER_MAX_IMAGES must be between 0 and 10")
	}

	if !strings.HasPrefix(c.Scraper.BaseDomain, "http") {
		return fmt.Errorf("SCRAPER_BASE_DOMAIN must be an absolute URL")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
