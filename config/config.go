package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort   int
	PublicURL string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	JWTSecret   string
	JWTTTL      time.Duration
	AdminEmail  string
	AdminPasswd string

	OrderPlaceTimeout time.Duration
	LeaseTTL          time.Duration
	MaxSuggestions    int
	TakeawayTableID   string

	StaffBotToken    string
	StaffBotUsername []string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	ImageUploadURL    string
	ImageUploadPreset string
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "restrobook"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))
	cfg.PublicURL = cast.ToString(getOrReturnDefault("PUBLIC_URL", "http://localhost:3000"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "restrobook"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations/postgres"))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", "super-secret-jwt-key"))
	cfg.JWTTTL = cast.ToDuration(getOrReturnDefault("JWT_TTL", "12h"))
	cfg.AdminEmail = cast.ToString(getOrReturnDefault("ADMIN_EMAIL", ""))
	cfg.AdminPasswd = cast.ToString(getOrReturnDefault("ADMIN_PASSWORD", ""))

	cfg.OrderPlaceTimeout = cast.ToDuration(getOrReturnDefault("ORDER_PLACE_TIMEOUT", "10s"))
	cfg.LeaseTTL = cast.ToDuration(getOrReturnDefault("TABLE_LEASE_TTL", "4h"))
	cfg.MaxSuggestions = cast.ToInt(getOrReturnDefault("MAX_SUGGESTIONS", 50))
	cfg.TakeawayTableID = cast.ToString(getOrReturnDefault("TAKEAWAY_TABLE_ID", "Takeaway"))

	cfg.StaffBotToken = cast.ToString(getOrReturnDefault("STAFF_BOT_TOKEN", ""))
	cfg.StaffBotUsername = splitList(cast.ToString(getOrReturnDefault("STAFF_BOT_USERNAMES", "")))

	cfg.SMTPHost = cast.ToString(getOrReturnDefault("SMTP_HOST", "smtp.gmail.com"))
	cfg.SMTPPort = cast.ToInt(getOrReturnDefault("SMTP_PORT", 587))
	cfg.SMTPUser = cast.ToString(getOrReturnDefault("EMAIL_USER", ""))
	cfg.SMTPPassword = cast.ToString(getOrReturnDefault("EMAIL_PASS", ""))

	cfg.ImageUploadURL = cast.ToString(getOrReturnDefault("IMAGE_UPLOAD_URL", ""))
	cfg.ImageUploadPreset = cast.ToString(getOrReturnDefault("IMAGE_UPLOAD_PRESET", "restro_menu_uploads"))

	return cfg
}

func (c Config) PostgresURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// splitList reads a comma or space separated env value.
func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
}
