package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultSigningAlg      = "HS256"
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultCodeTTL         = 10 * time.Minute
	defaultPasswordMin     = 8
	defaultPasswordMax     = 64
	defaultSweepInterval   = time.Minute
	defaultRevocationStore = RevocationStorePostgres
)

// Where revoked tokens are kept
const (
	RevocationStorePostgres = "postgres"
	RevocationStoreKV       = "kv"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment: dev or prod
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Used to sign JWT tokens with HMAC, required
	SecretKey string

	// HS256, HS384 or HS512
	SigningAlg string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration

	PasswordMinLength int
	PasswordMaxLength int

	// Require lower, upper, digit and special characters in passwords
	PasswordStrict bool

	// Redis to keep codes and issued tokens in; in-memory store is used if empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// postgres or kv
	RevocationStore string

	// SMTP server to send verification codes; if empty codes are logged in dev and not delivered otherwise
	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// How often expired revocations and kv entries are purged
	SweepInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		Environment:       defaultEnvironment,
		ListenAddr:        defaultListenAddr,
		SigningAlg:        defaultSigningAlg,
		AccessTTL:         defaultAccessTTL,
		RefreshTTL:        defaultRefreshTTL,
		CodeTTL:           defaultCodeTTL,
		PasswordMinLength: defaultPasswordMin,
		PasswordMaxLength: defaultPasswordMax,
		RevocationStore:   defaultRevocationStore,
		SweepInterval:     defaultSweepInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

// Set options from environment, empty values are skipped
func (c *Config) LoadEnv(getenv func(string) string) error {
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			*o = value
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":         setString(&c.ListenAddr),
		"DATABASE_URI":        setString(&c.DatabaseDSN),
		"SECRET_KEY":          setString(&c.SecretKey),
		"SIGNING_ALG":         setString(&c.SigningAlg),
		"ACCESS_TOKEN_TTL":    setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":   setDuration(&c.RefreshTTL),
		"CODE_TTL":            setDuration(&c.CodeTTL),
		"PASSWORD_MIN_LENGTH": setInt(&c.PasswordMinLength),
		"PASSWORD_MAX_LENGTH": setInt(&c.PasswordMaxLength),
		"PASSWORD_STRICT":     setBool(&c.PasswordStrict),
		"REDIS_ADDR":          setString(&c.RedisAddr),
		"REDIS_PASSWORD":      setString(&c.RedisPassword),
		"REDIS_DB":            setInt(&c.RedisDB),
		"REVOCATION_STORE":    setString(&c.RevocationStore),
		"SMTP_ADDR":           setString(&c.SMTPAddr),
		"SMTP_FROM":           setString(&c.SMTPFrom),
		"SMTP_USERNAME":       setString(&c.SMTPUsername),
		"SMTP_PASSWORD":       setString(&c.SMTPPassword),
		"SWEEP_INTERVAL":      setDuration(&c.SweepInterval),
		"LOG_LEVEL":           setString(&c.LogLevel),
		"ENVIRONMENT":         setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		value := getenv(key)
		if value == "" {
			continue
		}
		if err := parseFn(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gopherauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign tokens")
	fs.StringVar(&c.SigningAlg, "signing-alg", c.SigningAlg, "Token signing algorithm (HS256, HS384, HS512)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.CodeTTL, "code-ttl", c.CodeTTL, "Verification code lifetime")
	fs.IntVar(&c.PasswordMinLength, "password-min-length", c.PasswordMinLength, "Minimal password length")
	fs.IntVar(&c.PasswordMaxLength, "password-max-length", c.PasswordMaxLength, "Maximal password length")
	fs.BoolVar(&c.PasswordStrict, "password-strict", c.PasswordStrict, "Require mixed character classes in passwords")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address, in-memory store is used if empty")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.RevocationStore, "revocation-store", c.RevocationStore, "Revoked tokens storage (postgres, kv)")
	fs.StringVar(&c.SMTPAddr, "smtp-addr", c.SMTPAddr, "SMTP server address, codes are logged in dev if empty")
	fs.StringVar(&c.SMTPFrom, "smtp-from", c.SMTPFrom, "Sender of verification emails")
	fs.StringVar(&c.SMTPUsername, "smtp-username", c.SMTPUsername, "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Expired entries purge interval")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Check options that can't be defaulted
func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.RevocationStore != RevocationStorePostgres && c.RevocationStore != RevocationStoreKV {
		errs = append(errs, fmt.Errorf("revocation store has to be %q or %q, got %q", RevocationStorePostgres, RevocationStoreKV, c.RevocationStore))
	}
	if c.PasswordMinLength <= 0 || c.PasswordMaxLength < c.PasswordMinLength {
		errs = append(errs, fmt.Errorf("invalid password length bounds [%d, %d]", c.PasswordMinLength, c.PasswordMaxLength))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.CodeTTL <= 0 {
		errs = append(errs, errors.New("token and code lifetimes must be positive"))
	}
	if c.SMTPAddr != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("smtp sender is required if smtp address set"))
	}

	return errors.Join(errs...)
}
