package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig(cfg))
}

func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	settings := map[string]string{
		"host":     cfg.Host,
		"port":     fmt.Sprint(cfg.Port),
		"user":     cfg.User,
		"dbname":   cfg.Name,
		"sslmode":  "disable",
		"TimeZone": "UTC",
	}
	if cfg.Host == "" {
		settings["host"] = "localhost"
	}
	if cfg.Port == 0 {
		settings["port"] = "5432"
	}
	if cfg.Password != "" {
		settings["password"] = cfg.Password
	}
	for key, value := range cfg.Options {
		settings[key] = value
	}

	ordered := []string{"host", "port", "user", "dbname"}
	params := make([]string, 0, len(settings))
	for _, key := range ordered {
		params = append(params, key+"="+quotePostgresValue(settings[key]))
		delete(settings, key)
	}

	rest := make([]string, 0, len(settings))
	for key := range settings {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		params = append(params, key+"="+quotePostgresValue(settings[key]))
	}

	return strings.Join(params, " "), nil
}

// quotePostgresValue applies libpq keyword/value quoting when required.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}
