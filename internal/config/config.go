package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	Currency              string
	TaxRate               float64
	OrderDelayMS          int
	AnalyticsTTLSeconds   int
	AuthSecret            string
	AccessTokenTTLMinutes int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE", "0.0725"), 64)
	if err != nil || taxRate < 0 || taxRate >= 1 {
		taxRate = 0.0725
	}
	orderDelay, err := strconv.Atoi(getEnv("ORDER_DELAY_MS", "800"))
	if err != nil || orderDelay < 0 {
		orderDelay = 800
	}
	analyticsTTL, err := strconv.Atoi(getEnv("ANALYTICS_TTL_SECONDS", "60"))
	if err != nil || analyticsTTL < 1 {
		analyticsTTL = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		Currency:              getEnv("CURRENCY", "USD"),
		TaxRate:               taxRate,
		OrderDelayMS:          orderDelay,
		AnalyticsTTLSeconds:   analyticsTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
