// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken     = "TELEGRAM_TOKEN"
	KeyPrivilegedHandles = "PRIVILEGED_HANDLES"
	KeyStorageBackend    = "STORAGE_BACKEND"
	KeySQLitePath        = "SQLITE_PATH"
	KeyMongoURI          = "MONGO_URI"
	KeyMongoDB           = "MONGO_DB"
	KeySMTPHost          = "SMTP_HOST"
	KeySMTPPort          = "SMTP_PORT"
	KeySMTPUsername      = "SMTP_USERNAME"
	KeySMTPPassword      = "SMTP_PASSWORD"
	KeySMTPFrom          = "SMTP_FROM"
	KeyHREmail           = "HR_EMAIL"
	KeyResumeDir         = "RESUME_DIR"
	KeyMeetingBaseURL    = "MEETING_BASE_URL"
	KeyCurrencyUnit      = "CURRENCY_UNIT"
	KeyAppEnv            = "APP_ENV"
	KeyLogLevel          = "LOG_LEVEL"
	KeyHTTPPort          = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed storage backends.
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"

	// Defaults for optional settings.
	DefaultAppEnv         = EnvProduction
	DefaultLogLevel       = "info"
	DefaultHTTPPort       = 8080
	DefaultStorageBackend = BackendSQLite
	DefaultSQLitePath     = "data/hr_bot.db"
	DefaultSMTPPort       = 465
	DefaultResumeDir      = "resumes"
	DefaultMeetingBaseURL = "https://meet.jit.si"
	DefaultCurrencyUnit   = "RUB"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	RequiredFor string // storage backend that makes this value required
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyPrivilegedHandles,
		Example:     "@hr_lead,recruiter",
		Description: "Telegram handles allowed to clear and export applications.",
		Notes:       "Comma separated; leading @ optional; matched case-insensitively.",
	},
	{
		Key:         KeyStorageBackend,
		Example:     BackendSQLite + " / " + BackendMongo,
		Default:     DefaultStorageBackend,
		Description: "Persistence backend for users and applications.",
	},
	{
		Key:         KeySQLitePath,
		Example:     DefaultSQLitePath,
		Default:     DefaultSQLitePath,
		Description: "SQLite database file used by the sqlite backend.",
	},
	{
		Key:         KeyMongoURI,
		RequiredFor: BackendMongo,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string.",
		Notes:       "Required when " + KeyStorageBackend + "=" + BackendMongo + ".",
	},
	{
		Key:         KeyMongoDB,
		RequiredFor: BackendMongo,
		Example:     "hr_bot",
		Description: "MongoDB database name.",
		Notes:       "Required when " + KeyStorageBackend + "=" + BackendMongo + ".",
	},
	{
		Key:         KeySMTPHost,
		Example:     "smtp.example.com",
		Required:    true,
		Description: "SMTP server used for résumé notifications.",
	},
	{
		Key:         KeySMTPPort,
		Example:     strconv.Itoa(DefaultSMTPPort),
		Default:     strconv.Itoa(DefaultSMTPPort),
		Description: "SMTP port; 465 uses implicit TLS, anything else STARTTLS.",
	},
	{
		Key:         KeySMTPUsername,
		Example:     "bot@example.com",
		Required:    true,
		Description: "SMTP login.",
	},
	{
		Key:         KeySMTPPassword,
		Example:     "app-password",
		Required:    true,
		Description: "SMTP password.",
	},
	{
		Key:         KeySMTPFrom,
		Example:     "bot@example.com",
		Description: "Sender address for notifications.",
		Notes:       "Defaults to " + KeySMTPUsername + ".",
	},
	{
		Key:         KeyHREmail,
		Example:     "hr@example.com",
		Required:    true,
		Description: "Recipient of résumé notifications.",
	},
	{
		Key:         KeyResumeDir,
		Example:     DefaultResumeDir,
		Default:     DefaultResumeDir,
		Description: "Directory where uploaded résumés are stored.",
	},
	{
		Key:         KeyMeetingBaseURL,
		Example:     DefaultMeetingBaseURL,
		Default:     DefaultMeetingBaseURL,
		Description: "Base URL for generated meeting links.",
	},
	{
		Key:         KeyCurrencyUnit,
		Example:     DefaultCurrencyUnit,
		Default:     DefaultCurrencyUnit,
		Description: "Currency label printed next to salaries.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken     string
	PrivilegedHandles []string
	StorageBackend    string
	SQLitePath        string
	MongoURI          string
	MongoDB           string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	HREmail           string
	ResumeDir         string
	MeetingBaseURL    string
	CurrencyUnit      string
	AppEnv            string
	LogLevel          string
	HTTPPort          int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:            firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:     strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		PrivilegedHandles: splitList(os.Getenv(KeyPrivilegedHandles)),
		StorageBackend:    firstNonEmpty(normalizeEnv(os.Getenv(KeyStorageBackend)), DefaultStorageBackend),
		SQLitePath:        firstNonEmpty(os.Getenv(KeySQLitePath), DefaultSQLitePath),
		MongoURI:          strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:           strings.TrimSpace(os.Getenv(KeyMongoDB)),
		SMTPHost:          strings.TrimSpace(os.Getenv(KeySMTPHost)),
		SMTPPort:          DefaultSMTPPort,
		SMTPUsername:      strings.TrimSpace(os.Getenv(KeySMTPUsername)),
		SMTPPassword:      strings.TrimSpace(os.Getenv(KeySMTPPassword)),
		HREmail:           strings.TrimSpace(os.Getenv(KeyHREmail)),
		ResumeDir:         firstNonEmpty(os.Getenv(KeyResumeDir), DefaultResumeDir),
		MeetingBaseURL:    strings.TrimRight(firstNonEmpty(os.Getenv(KeyMeetingBaseURL), DefaultMeetingBaseURL), "/"),
		CurrencyUnit:      firstNonEmpty(os.Getenv(KeyCurrencyUnit), DefaultCurrencyUnit),
		LogLevel:          firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:          DefaultHTTPPort,
	}
	cfg.SMTPFrom = firstNonEmpty(os.Getenv(KeySMTPFrom), cfg.SMTPUsername)

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}
	if err := validateBackend(cfg.StorageBackend); err != nil {
		return Config{}, err
	}

	missing := missingKeys(map[string]string{
		KeyTelegramToken: cfg.TelegramToken,
		KeyMongoURI:      cfg.MongoURI,
		KeyMongoDB:       cfg.MongoDB,
		KeySMTPHost:      cfg.SMTPHost,
		KeySMTPUsername:  cfg.SMTPUsername,
		KeySMTPPassword:  cfg.SMTPPassword,
		KeyHREmail:       cfg.HREmail,
	}, cfg.StorageBackend)

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.StorageBackend == BackendMongo && !isMongoURI(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if cfg.SMTPPort, err = parsePort(KeySMTPPort, DefaultSMTPPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTPPort, err = parsePort(KeyHTTPPort, DefaultHTTPPort); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// missingKeys walks Contract in order and returns the keys that are required,
// unconditionally or for backend, but have no value.
func missingKeys(values map[string]string, backend string) []string {
	missing := make([]string, 0)
	for _, spec := range Contract {
		if !spec.Required && (spec.RequiredFor == "" || spec.RequiredFor != backend) {
			continue
		}
		if values[spec.Key] == "" {
			missing = append(missing, spec.Key)
		}
	}
	return missing
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateBackend(backend string) error {
	if backend == BackendSQLite || backend == BackendMongo {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyStorageBackend, BackendSQLite, BackendMongo)
}

func parsePort(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535", key)
	}

	return port, nil
}

func isMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
