package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything the process reads from the environment.
type Config struct {
	Port         string
	SecretKey    string
	SessionTTL   time.Duration
	CookieSecure bool

	DBDriver string
	DBDSN    string
	DBHost   string
	DBUser   string
	DBPass   string
	DBName   string
	DBPort   string

	UploadFolder string

	MailAPIKey   string
	MailFrom     string
	MailFromName string

	LogLevel  string
	LogPretty bool
}

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, using system environment variables")
	}
}

// LoadConfig builds a Config from the environment. SECRET_KEY is required.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		SecretKey:    os.Getenv("SECRET_KEY"),
		DBDriver:     getEnv("DB_DRIVER", "postgres"),
		DBDSN:        os.Getenv("DB_DSN"),
		DBHost:       os.Getenv("DB_HOST"),
		DBUser:       os.Getenv("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBName:       os.Getenv("DB_NAME"),
		DBPort:       os.Getenv("DB_PORT"),
		UploadFolder: getEnv("UPLOAD_FOLDER", "static/uploads"),
		MailAPIKey:   os.Getenv("MAIL_API_KEY"),
		MailFrom:     getEnv("MAIL_FROM", "noreply@eventboard.local"),
		MailFromName: getEnv("MAIL_FROM_NAME", "Eventboard"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if cfg.SecretKey == "" {
		return Config{}, errors.New("SECRET_KEY is missing")
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	if cfg.CookieSecure, err = getBool("COOKIE_SECURE"); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = getBool("LOG_PRETTY"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
