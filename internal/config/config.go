package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/validator.v2"
)

// Ledger backends.
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerDynamoDB = "dynamodb"
	LedgerMemory   = "memory"
)

const chatTokenPrefix = "CHAT_TOKEN_"

// Config aggregates runtime configuration for the job.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	DynamoDB  DynamoDBConfig
	Logger    LoggerConfig
	Ledger    LedgerConfig
	Run       RunConfig
	Ticketing TicketingConfig
	Identity  IdentityConfig
	Cloud     CloudConfig
	Chat      ChatConfig
	Mail      MailConfig
	VPN       VPNConfig
	Trigger   TriggerConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string `validate:"nonzero"`
	Env     string `validate:"nonzero"`
	Host    string
	Port    string
	Version string

	RequestTimeoutSeconds int `validate:"min=0"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DynamoDBConfig locates the ledger table.
type DynamoDBConfig struct {
	Region   string
	Table    string
	Endpoint string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// LedgerConfig selects and tunes the dedup ledger.
type LedgerConfig struct {
	Backend     string `validate:"ledgerbackend"`
	RetryFailed bool
	KeyPrefix   string
}

// RunConfig tunes a processing pass.
type RunConfig struct {
	OnboardingType         string `validate:"nonzero"`
	WindowDays             int    `validate:"min=1"`
	ActivationDelaySeconds int    `validate:"min=0"`
	CallTimeoutSeconds     int    `validate:"min=1"`
	IntervalMinutes        int    `validate:"min=0"`
	RoutingFile            string
}

// TicketingConfig points at the ticketing API.
type TicketingConfig struct {
	BaseURL string `validate:"nonzero"`
	Token   string `validate:"nonzero"`
	PerPage int    `validate:"min=1"`
}

// IdentityConfig points at the identity provider API.
type IdentityConfig struct {
	BaseURL string `validate:"nonzero"`
	Token   string `validate:"nonzero"`
}

// CloudConfig holds cloud workspace provisioning credentials.
type CloudConfig struct {
	IdentityURL string `validate:"nonzero"`
	Username    string
	APIKey      string
	PortalURL   string
}

// ChatConfig holds one invite token per chat workspace, keyed by lowercase
// workspace name.
type ChatConfig struct {
	Tokens map[string]string
}

// MailConfig configures the transactional email sender.
type MailConfig struct {
	Source string `validate:"nonzero"`
	Region string `validate:"nonzero"`
}

// VPNConfig holds the VPN client links embedded in emails.
type VPNConfig struct {
	WindowsDownload string
	MacDownload     string
	LinuxDownload   string
	RemoteGateway   string
	Port            string
}

// TriggerConfig secures the HTTP trigger in serve mode.
type TriggerConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

func init() {
	validator.SetValidationFunc("ledgerbackend", func(v interface{}, param string) error {
		backend, ok := v.(string)
		if !ok {
			return errors.New("ledger backend must be a string")
		}
		switch backend {
		case LedgerPostgres, LedgerRedis, LedgerDynamoDB, LedgerMemory:
			return nil
		}
		return fmt.Errorf("unknown ledger backend %q", backend)
	})
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	region := getEnv("AWS_REGION", "us-east-1")

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "onboarding-service"),
			Env:     getEnv("APP_ENV", "production"),
			Host:    getEnv("APP_HOST", "0.0.0.0"),
			Port:    getEnv("APP_PORT", "8080"),
			Version: getEnv("APP_VERSION", "dev"),

			RequestTimeoutSeconds: getEnvAsInt("APP_REQUEST_TIMEOUT_SECONDS", 900),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		DynamoDB: DynamoDBConfig{
			Region:   region,
			Table:    getEnv("DYNAMODB_TABLE", "OnBoarding_Incidents"),
			Endpoint: os.Getenv("DYNAMODB_ENDPOINT"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Ledger: LedgerConfig{
			Backend:     strings.ToLower(getEnv("LEDGER_BACKEND", LedgerPostgres)),
			RetryFailed: getEnvAsBool("LEDGER_RETRY_FAILED", false),
			KeyPrefix:   getEnv("LEDGER_KEY_PREFIX", "onboarding:"),
		},
		Run: RunConfig{
			OnboardingType:         getEnv("RUN_ONBOARDING_TYPE", "Employee - On Boarding"),
			WindowDays:             getEnvAsInt("RUN_WINDOW_DAYS", 8),
			ActivationDelaySeconds: getEnvAsInt("RUN_ACTIVATION_DELAY_SECONDS", 5),
			CallTimeoutSeconds:     getEnvAsInt("RUN_CALL_TIMEOUT_SECONDS", 30),
			IntervalMinutes:        getEnvAsInt("RUN_INTERVAL_MINUTES", 0),
			RoutingFile:            os.Getenv("ROUTING_FILE"),
		},
		Ticketing: TicketingConfig{
			BaseURL: getEnv("SAMANAGE_BASE_URL", "https://api.samanage.com"),
			Token:   os.Getenv("SAMANAGE_TOKEN"),
			PerPage: getEnvAsInt("SAMANAGE_PER_PAGE", 100),
		},
		Identity: IdentityConfig{
			BaseURL: os.Getenv("OKTA_BASE_URL"),
			Token:   os.Getenv("OKTA_API_TOKEN"),
		},
		Cloud: CloudConfig{
			IdentityURL: getEnv("RACKSPACE_IDENTITY_URL", "https://identity.api.rackspacecloud.com/v2.0"),
			Username:    os.Getenv("RACKSPACE_USERNAME"),
			APIKey:      os.Getenv("RACKSPACE_API_KEY"),
			PortalURL:   os.Getenv("RACKSPACE_PORTAL_URL"),
		},
		Chat: ChatConfig{
			Tokens: chatTokensFromEnv(os.Environ()),
		},
		Mail: MailConfig{
			Source: os.Getenv("MAIL_SOURCE"),
			Region: getEnv("MAIL_REGION", region),
		},
		VPN: VPNConfig{
			WindowsDownload: os.Getenv("VPN_WINDOWS_DOWNLOAD"),
			MacDownload:     os.Getenv("VPN_MAC_DOWNLOAD"),
			LinuxDownload:   os.Getenv("VPN_LINUX_DOWNLOAD"),
			RemoteGateway:   os.Getenv("VPN_REMOTE_GATEWAY"),
			Port:            os.Getenv("VPN_PORT"),
		},
		Trigger: TriggerConfig{
			JWTSecret:       os.Getenv("TRIGGER_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("TRIGGER_TOKEN_TTL_MINUTES", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Ledger.Backend {
	case LedgerPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("invalid config: POSTGRES_DSN is required for the postgres ledger")
		}
	case LedgerDynamoDB:
		if c.DynamoDB.Table == "" {
			return errors.New("invalid config: DYNAMODB_TABLE is required for the dynamodb ledger")
		}
	case LedgerMemory:
		if c.App.Env != "development" {
			return errors.New("invalid config: memory ledger is only allowed with APP_ENV=development")
		}
	}
	return nil
}

// ActivationDelay returns the pause between account creation and chat invites.
func (r RunConfig) ActivationDelay() time.Duration {
	return time.Duration(r.ActivationDelaySeconds) * time.Second
}

// CallTimeout returns the deadline applied to each external call.
func (r RunConfig) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutSeconds) * time.Second
}

// Interval returns the serve-mode scheduling interval, zero when disabled.
func (r RunConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout bounds a triggered run started over HTTP, zero when unbounded.
func (a AppConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued trigger tokens.
func (t TriggerConfig) TokenTTL() time.Duration {
	return time.Duration(t.TokenTTLMinutes) * time.Minute
}

func chatTokensFromEnv(environ []string) map[string]string {
	tokens := make(map[string]string)
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, chatTokenPrefix) || val == "" {
			continue
		}
		workspace := strings.ToLower(strings.TrimPrefix(key, chatTokenPrefix))
		tokens[workspace] = val
	}
	return tokens
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
