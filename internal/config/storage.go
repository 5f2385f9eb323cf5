package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// PostgresConnectionString builds a keyword/value DSN for pgx.
// Values are quoted to survive spaces and special characters in passwords.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(c.PostgresHost),
		c.PostgresPort,
		quoteDSNValue(c.PostgresUser),
		quoteDSNValue(c.PostgresPassword),
		quoteDSNValue(c.PostgresDBName),
		quoteDSNValue(c.PostgresSSLMode),
	)
}

// PostgresURL builds a postgres:// URL for golang-migrate.
// Credentials are URL-escaped.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}

// quoteDSNValue quotes a DSN value per the libpq keyword/value format:
// values containing spaces, quotes, or backslashes are wrapped in single
// quotes with internal backslashes and quotes escaped.
func quoteDSNValue(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " '\\") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// parseDatabaseURL overrides the postgres_* fields from DATABASE_URL when
// the environment variable is set. This supports managed platforms that
// inject a single connection URL.
func (c *Config) parseDatabaseURL() error {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		c.PostgresHost = host
	}
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			c.PostgresUser = user
		}
		if password, ok := u.User.Password(); ok {
			c.PostgresPassword = password
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.PostgresDBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}
