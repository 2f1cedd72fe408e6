package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Provider defines the interface for configuration management
type Provider interface {
	// GetString retrieves a string configuration value
	GetString(ctx context.Context, key string) (string, error)
	// GetInt retrieves an integer configuration value
	GetInt(ctx context.Context, key string) (int, error)
	// GetBool retrieves a boolean configuration value
	GetBool(ctx context.Context, key string) (bool, error)
	// GetSecret retrieves a secret value
	GetSecret(ctx context.Context, key string) (string, error)
	// GetEnvironment returns the current environment
	GetEnvironment() Environment
}

// EnvProvider implements Provider using environment variables
type EnvProvider struct {
	prefix      string
	environment Environment
}

// NewEnvProvider creates a new environment-based configuration provider
func NewEnvProvider(prefix string) Provider {
	return &EnvProvider{
		prefix:      prefix,
		environment: currentEnvironment(),
	}
}

func currentEnvironment() Environment {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return Development
	}
	return Environment(env)
}

// GetEnvironment returns the current environment
func (p *EnvProvider) GetEnvironment() Environment {
	return p.environment
}

// GetString retrieves a string configuration value from environment variables
func (p *EnvProvider) GetString(ctx context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + key)
	if value == "" {
		return "", fmt.Errorf("environment variable %s%s not set", p.prefix, key)
	}
	return value, nil
}

// GetInt retrieves an integer configuration value from environment variables
func (p *EnvProvider) GetInt(ctx context.Context, key string) (int, error) {
	return parseInt(p.GetString(ctx, key))
}

// GetBool retrieves a boolean configuration value from environment variables
func (p *EnvProvider) GetBool(ctx context.Context, key string) (bool, error) {
	return parseBool(p.GetString(ctx, key))
}

// GetSecret retrieves a secret value from environment variables
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	return p.GetString(ctx, key)
}

func parseInt(value string, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

func parseBool(value string, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(value)
}

var (
	upperRe  = regexp.MustCompile(`[A-Z]`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
	symbolRe = regexp.MustCompile(`[^A-Za-z0-9]`)
	dbNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, quoteDSN(c.Password), c.DBName, c.SSLMode)
}

// quoteDSN quotes a key/value connection parameter when it contains spaces or
// quotes
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Validate checks if the database configuration is valid
func (c *DatabaseConfig) Validate(env Environment) error {
	if c.Host == "" {
		return &ValidationError{Field: "Host", Message: "host cannot be empty"}
	}
	if host := net.ParseIP(c.Host); host == nil {
		if _, err := net.LookupHost(c.Host); err != nil {
			return &ValidationError{Field: "Host", Message: "invalid hostname or IP address"}
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &ValidationError{Field: "Port", Message: "port must be between 1 and 65535"}
	}

	if c.User == "" {
		return &ValidationError{Field: "User", Message: "user cannot be empty"}
	}

	if c.Password == "" {
		return &ValidationError{Field: "Password", Message: "password cannot be empty"}
	}
	if env == Production {
		if err := strongPassword("Password", c.Password); err != nil {
			return err
		}
	}

	if c.DBName == "" {
		return &ValidationError{Field: "DBName", Message: "database name cannot be empty"}
	}
	if !dbNameRe.MatchString(c.DBName) {
		return &ValidationError{Field: "DBName", Message: "database name must start with a letter and contain only letters, numbers, and underscores"}
	}

	if !validSSLModes[c.SSLMode] {
		return &ValidationError{Field: "SSLMode", Message: "invalid SSL mode"}
	}
	if env == Production && c.SSLMode == "disable" {
		return &ValidationError{Field: "SSLMode", Message: "SSL cannot be disabled in production"}
	}

	return nil
}

// strongPassword enforces the production password rules
func strongPassword(field, password string) error {
	switch {
	case len(password) < 12:
		return &ValidationError{Field: field, Message: "password must be at least 12 characters long in production"}
	case !upperRe.MatchString(password):
		return &ValidationError{Field: field, Message: "password must contain at least one uppercase letter in production"}
	case !lowerRe.MatchString(password):
		return &ValidationError{Field: field, Message: "password must contain at least one lowercase letter in production"}
	case !digitRe.MatchString(password):
		return &ValidationError{Field: field, Message: "password must contain at least one number in production"}
	case !symbolRe.MatchString(password):
		return &ValidationError{Field: field, Message: "password must contain at least one special character in production"}
	}
	return nil
}

// GetDatabaseConfig retrieves database configuration using the provided config provider
func GetDatabaseConfig(ctx context.Context, provider Provider) (*DatabaseConfig, error) {
	host, err := provider.GetString(ctx, "DB_HOST")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_HOST: %w", err)
	}

	port, err := provider.GetInt(ctx, "DB_PORT")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PORT: %w", err)
	}

	user, err := provider.GetString(ctx, "DB_USER")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_USER: %w", err)
	}

	password, err := provider.GetSecret(ctx, "DB_PASSWORD")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_PASSWORD: %w", err)
	}

	dbname, err := provider.GetString(ctx, "DB_NAME")
	if err != nil {
		return nil, fmt.Errorf("failed to get DB_NAME: %w", err)
	}

	sslmode, err := provider.GetString(ctx, "DB_SSLMODE")
	if err != nil {
		sslmode = "disable"
	}

	cfg := &DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		DBName:   dbname,
		SSLMode:  sslmode,
	}

	if err := cfg.Validate(provider.GetEnvironment()); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	return cfg, nil
}

// Storage drivers accepted in STORAGE_DRIVER
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port          int
	StorageDriver string
	SQLitePath    string
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoTable   string
}

// LoadServerConfig reads the server settings from provider. Unset keys fall
// back to their defaults; malformed values are an error.
func LoadServerConfig(ctx context.Context, provider Provider) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:          8080,
		StorageDriver: StoragePostgres,
		CacheBackend:  "memory",
		CacheTTL:      5 * time.Minute,
		RedisAddr:     "localhost:6379",
	}

	var err error
	lookup := func(key string) (string, bool) {
		v, lerr := provider.GetString(ctx, key)
		return strings.TrimSpace(v), lerr == nil && strings.TrimSpace(v) != ""
	}

	if v, ok := lookup("PORT"); ok {
		if cfg.Port, err = strconv.Atoi(v); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
			return nil, &ValidationError{Field: "PORT", Message: "port must be between 1 and 65535"}
		}
	}
	if v, ok := lookup("STORAGE_DRIVER"); ok {
		cfg.StorageDriver = strings.ToLower(v)
	}
	switch cfg.StorageDriver {
	case StoragePostgres, StorageSQLite, StorageMemory:
	default:
		return nil, &ValidationError{Field: "STORAGE_DRIVER", Message: "must be one of postgres, sqlite, memory"}
	}
	if v, ok := lookup("SQLITE_PATH"); ok {
		cfg.SQLitePath = v
	}
	if v, ok := lookup("CACHE_BACKEND"); ok {
		cfg.CacheBackend = strings.ToLower(v)
	}
	if v, ok := lookup("CACHE_TTL"); ok {
		if cfg.CacheTTL, err = time.ParseDuration(v); err != nil || cfg.CacheTTL <= 0 {
			return nil, &ValidationError{Field: "CACHE_TTL", Message: "must be a positive duration such as 5m"}
		}
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, err := provider.GetSecret(ctx, "REDIS_PASSWORD"); err == nil {
		cfg.RedisPassword = v
	}
	if v, ok := lookup("REDIS_DB"); ok {
		if cfg.RedisDB, err = strconv.Atoi(v); err != nil || cfg.RedisDB < 0 {
			return nil, &ValidationError{Field: "REDIS_DB", Message: "must be a non-negative number"}
		}
	}
	if v, ok := lookup("DYNAMO_TABLE"); ok {
		cfg.DynamoTable = v
	}

	return cfg, nil
}

// Addr returns the listen address for the configured port
func (c *ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
