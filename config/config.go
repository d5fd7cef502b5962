package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// protectedTables can never be enrolled for deletion, whatever the environment says
var protectedTables = map[string]bool{
	"audit_logs":       true,
	"delete_requests":  true,
	"goose_db_version": true,
}

// OIDCOptions configures the optional OpenID Connect login flow
type OIDCOptions struct {
	Domain       string `env:"OIDC_DOMAIN"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	CallbackURL  string `env:"OIDC_CALLBACK_URL"`
	RoleClaim    string `env:"OIDC_ROLE_CLAIM" envDefault:"role"`
}

// Enabled reports whether enough OIDC settings are present to use it
func (o OIDCOptions) Enabled() bool {
	return o.Domain != "" && o.ClientID != ""
}

// DeleteOptions holds the hard-delete workflow tunables.
// ApprovalRateLimit caps approval attempts per client IP and minute; 0 disables it.
type DeleteOptions struct {
	SoftDeleteTables  []string      `env:"SOFT_DELETE_TABLES" envSeparator:"," envDefault:"users,brands,products,product_submissions"`
	CoolingPeriod     time.Duration `env:"COOLING_PERIOD" envDefault:"24h"`
	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"48h"`
	ExecutionTimeout  time.Duration `env:"EXECUTION_TIMEOUT" envDefault:"10s"`
	ApprovalRateLimit int64         `env:"APPROVAL_RATE_LIMIT" envDefault:"30"`
}

// Configuration is the full service configuration
type Configuration struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DBPath      string   `env:"DB_PATH" envDefault:"hard_delete.db"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	UseHTTPS    bool     `env:"USE_HTTPS" envDefault:"false"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	JWTSecret   string   `env:"JWT_SECRET"`
	JWTIssuer   string   `env:"JWT_ISSUER"`
	AdminRoles  []string `env:"ADMIN_ROLES" envSeparator:"," envDefault:"admin,super_admin"`

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	Delete DeleteOptions
	OIDC   OIDCOptions
}

// LoadEnv loads the given .env files, skipping the ones that do not exist
func LoadEnv(envFiles ...string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}

	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files and parses the environment into a Configuration
func Load() (*Configuration, error) {
	if _, err := LoadEnv(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the workflow cannot run with
func (c *Configuration) Validate() error {
	if c.JWTSecret == "" && !c.OIDC.Enabled() {
		return fmt.Errorf("either JWT_SECRET or OIDC_DOMAIN/OIDC_CLIENT_ID must be set")
	}
	if c.Delete.CoolingPeriod < 0 {
		return fmt.Errorf("COOLING_PERIOD must be non-negative, got %s", c.Delete.CoolingPeriod)
	}
	if c.Delete.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.Delete.TokenTTL)
	}
	if c.Delete.ApprovalRateLimit < 0 {
		return fmt.Errorf("APPROVAL_RATE_LIMIT must be non-negative, got %d", c.Delete.ApprovalRateLimit)
	}
	if c.Delete.ExecutionTimeout <= 0 {
		return fmt.Errorf("EXECUTION_TIMEOUT must be positive, got %s", c.Delete.ExecutionTimeout)
	}

	tables := make([]string, 0, len(c.Delete.SoftDeleteTables))
	for _, table := range c.Delete.SoftDeleteTables {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		if protectedTables[table] {
			return fmt.Errorf("table %q cannot be enrolled in SOFT_DELETE_TABLES", table)
		}
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		return fmt.Errorf("SOFT_DELETE_TABLES must list at least one table")
	}
	c.Delete.SoftDeleteTables = tables

	return nil
}

// IsProtectedTable reports whether a table is excluded from deletion unconditionally
func IsProtectedTable(name string) bool {
	return protectedTables[name]
}
