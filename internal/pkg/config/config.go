package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/energosales/portal/internal/infrastructure/db/sqlstore"
)

type Config struct {
	Port      string `env:"PORT,      default=10000"`
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	Auth  AuthConfig
	DB    DBConfig
	Redis RedisConfig
	HTTP  HTTPConfig
	Leads LeadsConfig
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET,          required"`
	TokenTTL          time.Duration `env:"TOKEN_TTL,           default=1h"`
	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH, default=8"`

	// BootstrapAdminEmail is promoted to administrator at start-up if registered.
	BootstrapAdminEmail string `env:"BOOTSTRAP_ADMIN_EMAIL"`
}

type DBConfig struct {
	Driver          string        `env:"DB_DRIVER,            default=mysql"`
	Host            string        `env:"DB_HOST,              default=localhost"`
	Port            int           `env:"DB_PORT,              default=3306"`
	User            string        `env:"DB_USER,              default=root"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME,              default=energosales"`
	SQLitePath      string        `env:"SQLITE_PATH,          default=portal.db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,    default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,    default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME, default=5m"`
}

type RedisConfig struct {
	// Addr empty disables token revocation. KeyPrefix namespaces the
	// revocation keys so several deployments can share one database.
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB,         default=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX, default=portal:"`
}

type HTTPConfig struct {
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS, default=*"`
	AuthRateLimit    float64  `env:"AUTH_RATE_LIMIT,    default=5"`
	AuthRateBurst    int      `env:"AUTH_RATE_BURST,    default=10"`
}

type LeadsConfig struct {
	// WebhookURL empty disables the lead relay.
	WebhookURL     string        `env:"LEAD_WEBHOOK_URL"`
	Workers        int           `env:"LEAD_WORKERS,          default=4"`
	WebhookTimeout time.Duration `env:"LEAD_WEBHOOK_TIMEOUT,  default=5s"`

	// DeliveryTimeout bounds one submission, retries included. The operator's
	// request stays open for that long.
	DeliveryTimeout time.Duration `env:"LEAD_DELIVERY_TIMEOUT, default=15s"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := sqlstore.ParseDriver(c.DB.Driver); err != nil {
		return err
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.PasswordMinLength <= 0 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be positive, got %d", c.Auth.PasswordMinLength)
	}
	if c.Leads.WebhookURL != "" && c.Leads.Workers <= 0 {
		return fmt.Errorf("LEAD_WORKERS must be positive, got %d", c.Leads.Workers)
	}
	if c.Leads.WebhookURL != "" && c.Leads.DeliveryTimeout < c.Leads.WebhookTimeout {
		return fmt.Errorf("LEAD_DELIVERY_TIMEOUT (%s) must not be shorter than LEAD_WEBHOOK_TIMEOUT (%s)",
			c.Leads.DeliveryTimeout, c.Leads.WebhookTimeout)
	}
	return nil
}

// StoreConfig maps the DB section onto the credential store settings.
func (c *Config) StoreConfig() sqlstore.Config {
	driver, _ := sqlstore.ParseDriver(c.DB.Driver)
	return sqlstore.Config{
		Driver:          driver,
		Host:            c.DB.Host,
		Port:            c.DB.Port,
		User:            c.DB.User,
		Password:        c.DB.Password,
		Database:        c.DB.Name,
		Path:            c.DB.SQLitePath,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
	}
}
