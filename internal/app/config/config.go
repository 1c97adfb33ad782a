package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Env  string
		Port string
		Host string
	}

	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Queue struct {
		// Enabled=false desativa a fila e liga o despacho por polling
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	Server struct {
		// ID explícito do servidor; vazio usa derivação por hostname
		ID          string
		URL         string
		Region      string
		Priority    int
		MaxCapacity int
	}

	WhatsApp struct {
		DebugLevel        string
		HandshakeTimeout  time.Duration
		KeepAliveInterval time.Duration
	}

	Logging struct {
		Level          string
		Output         string
		ConsoleFormat  string
		FilePath       string
		FileMaxSize    int
		FileMaxBackups int
		FileMaxAge     int
		FileCompress   bool
		ConsoleColors  bool
	}

	Auth struct {
		// APIKey vazia desativa a autenticação (desenvolvimento)
		APIKey string
	}

	RateLimit struct {
		Requests int
		Window   time.Duration
	}

	CORS struct {
		AllowedOrigins string
	}
}

func LoadConfig() (*Config, error) {
	// Carregar .env se existir
	_ = godotenv.Load()

	cfg := &Config{}

	// App
	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.Host = getEnv("APP_HOST", "0.0.0.0")

	// Database
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "wafleet")
	cfg.Database.Password = getEnv("DB_PASSWORD", "wafleet123")
	cfg.Database.Name = getEnv("DB_NAME", "wafleet")
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", "disable")

	// Redis (cache)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Queue (opcional; desativada = fallback por polling)
	cfg.Queue.Enabled = getEnvAsBool("QUEUE_ENABLED", true)
	cfg.Queue.Addr = getEnv("QUEUE_ADDR", cfg.Redis.Addr)
	cfg.Queue.Password = getEnv("QUEUE_PASSWORD", cfg.Redis.Password)
	cfg.Queue.DB = getEnvAsInt("QUEUE_DB", 1)

	// Identidade do servidor na frota
	cfg.Server.ID = getEnv("SERVER_ID", "")
	cfg.Server.URL = getEnv("SERVER_URL", "http://localhost:"+cfg.App.Port)
	cfg.Server.Region = getEnv("SERVER_REGION", "ap-southeast-1")
	cfg.Server.Priority = getEnvAsInt("SERVER_PRIORITY", 1)
	cfg.Server.MaxCapacity = getEnvAsInt("SERVER_MAX_CAPACITY", 50)

	// WhatsApp
	cfg.WhatsApp.DebugLevel = getEnv("WA_DEBUG_LEVEL", "INFO")
	cfg.WhatsApp.HandshakeTimeout = getEnvAsDuration("WA_HANDSHAKE_TIMEOUT", 60*time.Second)
	cfg.WhatsApp.KeepAliveInterval = getEnvAsDuration("WA_KEEPALIVE_INTERVAL", 10*time.Second)

	// Logging
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.Output = getEnv("LOG_OUTPUT", "dual")
	cfg.Logging.ConsoleFormat = getEnv("LOG_CONSOLE_FORMAT", "console")
	cfg.Logging.FilePath = getEnv("LOG_FILE_PATH", "logs/wafleet.log")
	cfg.Logging.FileMaxSize = getEnvAsInt("LOG_FILE_MAX_SIZE", 100)
	cfg.Logging.FileMaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 3)
	cfg.Logging.FileMaxAge = getEnvAsInt("LOG_FILE_MAX_AGE", 28)
	cfg.Logging.FileCompress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.Logging.ConsoleColors = getEnvAsBool("LOG_CONSOLE_COLORS", true)

	// Auth
	cfg.Auth.APIKey = getEnv("API_KEY", "")

	// Rate Limit (por chave de API)
	cfg.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 100)
	cfg.RateLimit.Window = getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute)

	// CORS
	cfg.CORS.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", "*")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetDatabaseDSN monta a DSN do PostgreSQL
func (c *Config) GetDatabaseDSN() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.Name + "?sslmode=" + c.Database.SSLMode
}

// QueueEnabled indica se a fila durável está configurada
func (c *Config) QueueEnabled() bool {
	return c.Queue.Enabled && c.Queue.Addr != ""
}

// Implementação da interface ConfigProvider para integração com o logger
func (c *Config) GetLogLevel() string         { return c.Logging.Level }
func (c *Config) GetLogOutput() string        { return c.Logging.Output }
func (c *Config) GetLogConsoleFormat() string { return c.Logging.ConsoleFormat }
func (c *Config) GetLogFilePath() string      { return c.Logging.FilePath }
func (c *Config) GetLogFileMaxSize() int      { return c.Logging.FileMaxSize }
func (c *Config) GetLogFileMaxBackups() int   { return c.Logging.FileMaxBackups }
func (c *Config) GetLogFileMaxAge() int       { return c.Logging.FileMaxAge }
func (c *Config) GetLogFileCompress() bool    { return c.Logging.FileCompress }
func (c *Config) GetLogConsoleColors() bool   { return c.Logging.ConsoleColors }
