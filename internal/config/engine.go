package config

import (
	"os"
	"strconv"
	"time"
)

type EngineConfig struct {
	DepositMin         int64
	DepositMax         int64
	MaxDepositsPerUser int
	RateLimitWindow    time.Duration
	DefaultCurrency    string
	InviteCodePrefix   string
	SettlementQueue    string
}

func LoadEngineConfig() *EngineConfig {
	return &EngineConfig{
		DepositMin:         getEnvAsInt64("DEPOSIT_MIN_AMOUNT", 1),
		DepositMax:         getEnvAsInt64("DEPOSIT_MAX_AMOUNT", 10000),
		MaxDepositsPerUser: getEnvAsInt("DEPOSIT_MAX_PER_USER", 10),
		RateLimitWindow:    getEnvAsDuration("DEPOSIT_RATE_LIMIT_WINDOW", 1*time.Hour),
		DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "GHS"),
		InviteCodePrefix:   getEnv("INVITE_CODE_PREFIX", "SUSU-"),
		SettlementQueue:    getEnv("SETTLEMENT_QUEUE", "settlement_queue"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
