package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cafe360/local-commerce/backend/api-gateway/routes"
	"golang.org/x/time/rate"
)

type Config struct {
	Port string
	Env  string

	Upstreams      routes.Upstreams
	AllowedOrigins []string

	UpstreamTimeout time.Duration
	DialTimeout     time.Duration
	RequestTimeout  time.Duration

	RateLimit rate.Limit
	RateBurst int
}

func LoadConfig() (*Config, error) {
	categories, err := routes.ParseRewrite(
		getEnv("CATEGORIES_REWRITE", "prepend"),
		getEnv("CATEGORIES_REWRITE_PREFIX", "/api/categories"),
	)
	if err != nil {
		return nil, fmt.Errorf("CATEGORIES_REWRITE: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),
		Upstreams: routes.Upstreams{
			Auth:              getEnv("AUTH_SERVICE_URL", "http://auth-service:8081"),
			Users:             getEnv("USER_SERVICE_URL", "http://user-service:8085"),
			Shops:             getEnv("SHOP_SERVICE_URL", "http://shop-service:8082"),
			Order:             getEnv("ORDER_SERVICE_URL", "http://order-service:8083"),
			CategoriesRewrite: categories,
		},
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		DialTimeout:     getDuration("UPSTREAM_DIAL_TIMEOUT", 5*time.Second),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 35*time.Second),
		RateLimit:       rate.Limit(getFloat("RATE_LIMIT_RPS", 20)),
		RateBurst:       getInt("RATE_LIMIT_BURST", 40),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
