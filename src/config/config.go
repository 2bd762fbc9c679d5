package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIEnv  string
	Port    string
	AppHost string
	LogFile string

	DSN          string
	TxMaxRetries int

	JWTSecret string

	// Reservation holds older than this are reclaimed by the reaper.
	ReservationTTL  time.Duration
	ReaperInterval  time.Duration
	ReaperBatchSize int

	OrderCodeAllocator string
	RedisHost          string

	KafkaBroker string
	AuditTopic  string

	// Seals QR payloads when set. Hex encoded AES key.
	QRSecret []byte
}

func Load() *Config {
	return &Config{
		APIEnv:  getEnv("API_ENV", "local"),
		Port:    getEnv("PORT", "8080"),
		AppHost: getEnv("APP_HOST", ""),
		LogFile: getEnv("LOG_FILE", ""),

		DSN:          GetDSN(),
		TxMaxRetries: getEnvAsInt("TX_MAX_RETRIES", 3),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ReservationTTL:  time.Duration(getEnvAsInt("RESERVATION_TTL_MINUTES", 15)) * time.Minute,
		ReaperInterval:  getEnvAsDuration("REAPER_INTERVAL", "60s"),
		ReaperBatchSize: getEnvAsInt("REAPER_BATCH_SIZE", 100),

		OrderCodeAllocator: getEnv("ORDER_CODE_ALLOCATOR", "store"),
		RedisHost:          getEnv("REDIS_HOST", ""),

		KafkaBroker: getEnv("KAFKA_BROKER", ""),
		AuditTopic:  getEnv("AUDIT_TOPIC", "ticketing-audit"),

		QRSecret: getEnvAsHex("API_QRC_SECRET"),
	}
}

func (c *Config) IsLocal() bool {
	return c.APIEnv == "local"
}

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := getEnv("DATABASE_PORT", "5432")
	DATABASE_SSLMODE := getEnv("DATABASE_SSLMODE", "disable")
	DATABASE_TIMEZONE := getEnv("DATABASE_TIMEZONE", "UTC")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsHex(key string) []byte {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	value, err := hex.DecodeString(valueStr)
	if err != nil {
		log.Printf("Ignoring %s: %s\n", key, err.Error())
		return nil
	}
	return value
}
