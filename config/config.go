package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultSQLitePath = "data/hemofilia.db"

type Config struct {
	DatabaseURL    string
	ForceIPv4      bool
	SQLitePath     string
	Port           string
	LogLevel       string
	LogFormat      string
	ReportBucket   string
	AllowedOrigins []string

	// DatabaseURLSource is "secrets", "env" or "default".
	DatabaseURLSource string
}

// LoadConfig resolves settings in this order: secrets file, environment,
// built-in default. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
func LoadConfig() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SQLITE_PATH", DefaultSQLitePath)
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8501")
	v.SetDefault("SECRETS_FILE", ".secrets.toml")

	cfg := Config{
		ForceIPv4:      v.GetBool("DB_FORCE_IPV4"),
		SQLitePath:     v.GetString("SQLITE_PATH"),
		Port:           v.GetString("PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		ReportBucket:   v.GetString("REPORT_BUCKET"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
	}

	if url := readSecret(v.GetString("SECRETS_FILE"), "DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
		cfg.DatabaseURLSource = "secrets"
	} else if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		cfg.DatabaseURL = url
		cfg.DatabaseURLSource = "env"
	} else {
		cfg.DatabaseURLSource = "default"
	}

	return cfg
}

// readSecret looks the key up in a TOML secrets file. A missing or malformed
// file counts as "not set".
func readSecret(path, key string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	s := viper.New()
	s.SetConfigFile(path)
	s.SetConfigType("toml")
	if err := s.ReadInConfig(); err != nil {
		return ""
	}

	if val := strings.TrimSpace(s.GetString(key)); val != "" {
		return val
	}
	// [database] url = "..."
	return strings.TrimSpace(s.GetString("database.url"))
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
