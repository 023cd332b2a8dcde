package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Sync     SyncConfig
	History  HistoryConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки служебного HTTP сервера (/metrics, /healthz)
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки шифрования API ключей аккаунтов
type SecurityConfig struct {
	EncryptionPassphrase string
	EncryptionSalt       string
}

// SyncConfig - настройки циклов синхронизации
type SyncConfig struct {
	// Интервалы периодических синхронизаций
	PairsInterval     time.Duration
	PositionsInterval time.Duration
	OrdersInterval    time.Duration
	TradesInterval    time.Duration

	// Порог подряд идущих ошибок запроса баланса до отключения аккаунта
	BreakerThreshold int
}

// HistoryConfig - настройки дозагрузки исторических цен
type HistoryConfig struct {
	Interval  time.Duration
	PageLimit int
	Coins     []string // базовый набор; монеты с позициями добавляются к нему
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "coinsync"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionPassphrase: getEnv("ENCRYPTION_PASSPHRASE", ""),
			EncryptionSalt:       getEnv("ENCRYPTION_SALT", ""),
		},
		Sync: SyncConfig{
			PairsInterval:     getEnvAsDuration("PAIRS_SYNC_INTERVAL", 5*time.Minute),
			PositionsInterval: getEnvAsDuration("POSITIONS_SYNC_INTERVAL", 1*time.Minute),
			OrdersInterval:    getEnvAsDuration("ORDERS_SYNC_INTERVAL", 1*time.Minute),
			TradesInterval:    getEnvAsDuration("TRADES_SYNC_INTERVAL", 5*time.Minute),
			BreakerThreshold:  getEnvAsInt("BREAKER_THRESHOLD", 3),
		},
		History: HistoryConfig{
			Interval:  getEnvAsDuration("HISTORY_SYNC_INTERVAL", 1*time.Hour),
			PageLimit: getEnvAsInt("HISTORY_PAGE_LIMIT", 2000),
			Coins:     getEnvAsList("HISTORY_COINS", []string{"BTC", "ETH"}),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			FilePath:   getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры шифрования
func (c *Config) validateSecurity() error {
	// Парольная фраза обязательна: без неё не расшифровать API ключи
	if c.Security.EncryptionPassphrase == "" {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE is required for decrypting account API keys")
	}

	if len(c.Security.EncryptionPassphrase) < 16 {
		return fmt.Errorf("ENCRYPTION_PASSPHRASE must be at least 16 characters")
	}

	if c.Security.EncryptionSalt == "" {
		return fmt.Errorf("ENCRYPTION_SALT is required for key derivation")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Sync.BreakerThreshold < 1 {
		return fmt.Errorf("BREAKER_THRESHOLD must be at least 1, got %d", c.Sync.BreakerThreshold)
	}

	for name, interval := range map[string]time.Duration{
		"PAIRS_SYNC_INTERVAL":     c.Sync.PairsInterval,
		"POSITIONS_SYNC_INTERVAL": c.Sync.PositionsInterval,
		"ORDERS_SYNC_INTERVAL":    c.Sync.OrdersInterval,
		"TRADES_SYNC_INTERVAL":    c.Sync.TradesInterval,
		"HISTORY_SYNC_INTERVAL":   c.History.Interval,
	} {
		if interval <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, interval)
		}
	}

	if c.History.PageLimit < 1 || c.History.PageLimit > 2000 {
		return fmt.Errorf("HISTORY_PAGE_LIMIT must be between 1 and 2000, got %d", c.History.PageLimit)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
