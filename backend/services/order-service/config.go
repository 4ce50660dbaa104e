package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/cafe360/local-commerce/backend/pkg/aws"
	"github.com/cafe360/local-commerce/backend/services/order-service/database"
)

type Config struct {
	Port           string
	Env            string
	RequestTimeout time.Duration

	Database database.Config

	FanoutTimeout time.Duration
	SendBuffer    int

	FirebaseProjectID       string
	FirebaseCredentialsFile string

	RedisURL string

	KafkaBrokers     []string
	OrderEventsTopic string
	OrderSNSTopicArn string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8083"),
		Env:            getEnv("ENV", "development"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
		Database: database.Config{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Karachi"),
		},
		FanoutTimeout:           getDuration("FANOUT_TIMEOUT", 5*time.Second),
		SendBuffer:              getInt("WS_SEND_BUFFER", 64),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaBrokers:            splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:        getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		OrderSNSTopicArn:        os.Getenv("ORDER_SNS_TOPIC_ARN"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if err := applyDBSecret(context.Background(), &cfg.Database); err != nil {
			return nil, err
		}
	}

	db := cfg.Database
	if db.User == "" || db.Password == "" || db.Name == "" || db.Host == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

// applyDBSecret overlays the non-empty values of the order/DB_CREDENTIALS
// secret onto db.
func applyDBSecret(ctx context.Context, db *database.Config) error {
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	secret, err := awspkg.NewSecretsClient(awsCfg).GetSecretMap(ctx, "order/DB_CREDENTIALS")
	if err != nil {
		return fmt.Errorf("load db secret: %w", err)
	}

	overlay := map[string]*string{
		"POSTGRES_USER":     &db.User,
		"POSTGRES_PASSWORD": &db.Password,
		"POSTGRES_DB":       &db.Name,
		"POSTGRES_HOST":     &db.Host,
		"POSTGRES_PORT":     &db.Port,
	}
	for key, field := range overlay {
		if v := secret[key]; v != "" {
			*field = v
		}
	}
	return nil
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

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
