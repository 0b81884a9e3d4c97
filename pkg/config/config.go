package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Fees     FeesConfig
	School   SchoolConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeesConfig tunes the fee ledger engine.
type FeesConfig struct {
	// DueDay is the day of the billing month a monthly fee falls due.
	DueDay int
	// ReceiptPrefix is the literal prefix of generated receipt numbers.
	ReceiptPrefix string
	// StatusCacheTTL bounds staleness of the payable-months picker cache.
	StatusCacheTTL time.Duration
	CacheEnabled   bool
	// ReceiptArchiveDir stores rendered receipt PDFs; empty disables archiving.
	ReceiptArchiveDir string
}

// SchoolConfig carries institution-wide settings.
type SchoolConfig struct {
	// Name and Address appear on printed receipts.
	Name    string
	Address string
	// AcademicYearStartMonth is the first month of the academic year (1..12).
	AcademicYearStartMonth int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	dueDay := v.GetInt("FEES_DUE_DAY")
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	cfg.Fees = FeesConfig{
		DueDay:         dueDay,
		ReceiptPrefix:  v.GetString("FEES_RECEIPT_PREFIX"),
		StatusCacheTTL: parseDuration(v.GetString("FEES_STATUS_CACHE_TTL"), 5*time.Minute),
		CacheEnabled:   v.GetBool("FEES_CACHE_ENABLED"),

		ReceiptArchiveDir: v.GetString("FEES_RECEIPT_ARCHIVE_DIR"),
	}

	startMonth := v.GetInt("ACADEMIC_YEAR_START_MONTH")
	if startMonth < 1 || startMonth > 12 {
		startMonth = 4
	}
	cfg.School = SchoolConfig{
		Name:                   v.GetString("SCHOOL_NAME"),
		Address:                v.GetString("SCHOOL_ADDRESS"),
		AcademicYearStartMonth: startMonth,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FEES_DUE_DAY", 10)
	v.SetDefault("FEES_RECEIPT_PREFIX", "REC")
	v.SetDefault("FEES_STATUS_CACHE_TTL", "5m")
	v.SetDefault("FEES_CACHE_ENABLED", false)
	v.SetDefault("FEES_RECEIPT_ARCHIVE_DIR", "")

	v.SetDefault("SCHOOL_NAME", "")
	v.SetDefault("SCHOOL_ADDRESS", "")
	v.SetDefault("ACADEMIC_YEAR_START_MONTH", 4)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
