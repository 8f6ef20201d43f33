// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Config struct'ı tüm ayarları tek bir yerde toplar — her yerde ayrı ayrı
// os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — her struct tek bir concern'ü temsil eder.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/unistaj.db)
}

// AuthConfig, token ve oturum ayarları.
//
// Erişim token'ı kısa ömürlüdür (dakika), refresh token uzun ömürlüdür (gün).
// Refresh ömrü hem login'de hem rotation'da AYNI değerdir — tek kanonik TTL.
type AuthConfig struct {
	JWTSecret           string // Token imzalama anahtarı - GİZLİ TUTULMALI
	AccessExpiryMinutes int    // Varsayılan: 30
	RefreshExpiryDays   int    // Varsayılan: 7 - login ve refresh için ortak
	CookieSecure        bool   // Refresh cookie'nin Secure flag'i (prod: true)
	SeedAdminEmail      string // İlk açılışta oluşturulan admin hesabı
	SeedAdminPassword   string
}

// EmailConfig, Resend üzerinden şifre sıfırlama emaili ayarları.
type EmailConfig struct {
	ResendAPIKey string // Boşsa email gönderimi devre dışı kalır
	FromEmail    string
	AppURL       string // Reset linklerinde kullanılan public URL
}

// RateLimitConfig, login brute-force koruması ayarları.
type RateLimitConfig struct {
	LoginMaxAttempts  int // Pencere başına deneme (varsayılan: 5)
	LoginWindowMinute int // Pencere süresi dakika (varsayılan: 2)
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyası yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	loginMax, err := strconv.Atoi(getEnv("LOGIN_RATELIMIT_MAX", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATELIMIT_MAX: %w", err)
	}

	loginWindow, err := strconv.Atoi(getEnv("LOGIN_RATELIMIT_WINDOW_MINUTES", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATELIMIT_WINDOW_MINUTES: %w", err)
	}

	cookieSecure, err := strconv.ParseBool(getEnv("AUTH_COOKIE_SECURE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_COOKIE_SECURE: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/unistaj.db"),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessExpiryMinutes: accessExpiry,
			RefreshExpiryDays:   refreshExpiry,
			CookieSecure:        cookieSecure,
			SeedAdminEmail:      getEnv("ADMIN_EMAIL", "admin01@gmail.com"),
			SeedAdminPassword:   getEnv("ADMIN_PASSWORD", "admin123"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromEmail:    getEnv("EMAIL_FROM", "noreply@unistaj.app"),
			AppURL:       getEnv("APP_URL", "http://localhost:3000"),
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:  loginMax,
			LoginWindowMinute: loginWindow,
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
