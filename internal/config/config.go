package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selected by the STORE_URI scheme.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr string
	//Auth / Security
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int

	// TOTP
	TOTPIssuer           string
	TOTPWindow           int
	TOTPReplayProtection bool
	RotateSecretOnLogin  bool
	QRSize               int
	QRRenderTimeout      time.Duration

	// Credential store
	StoreURI     string
	StoreKind    string
	MongoDB      string
	DBDebug      bool
	StoreTimeout time.Duration

	// Optional infrastructure
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	RateLimitEnabled bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := &Config{
		Env:            getEnv("ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "totp-auth"),
		TOTPIssuer:     getEnv("TOTP_ISSUER", "MyApp"),
		MongoDB:        getEnv("MONGO_DB", "auth"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitExchange: getEnv("RABBIT_EXCHANGE", "auth.events"),
	}
	if cfg.HTTPAddr == "" {
		if port := getEnv("PORT", ""); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":3001"
		}
	}

	// required values
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing required env var: JWT_SECRET")
	}

	cfg.StoreURI = firstEnv("STORE_URI", "MONGO_URI", "DB_ADDR")
	if cfg.StoreURI == "" {
		if !cfg.IsDev() {
			return nil, fmt.Errorf("missing required env var: STORE_URI")
		}
		cfg.StoreURI = "memory://"
	}
	kind, err := StoreKindOf(cfg.StoreURI)
	if err != nil {
		return nil, err
	}
	cfg.StoreKind = kind

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", time.Hour)
	collect(err)
	cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.QRRenderTimeout, err = getDuration("QR_RENDER_TIMEOUT", 2*time.Second)
	collect(err)

	cfg.BcryptCost, err = getInt("BCRYPT_COST", 12)
	collect(err)
	cfg.TOTPWindow, err = getInt("TOTP_WINDOW", 1)
	collect(err)
	cfg.QRSize, err = getInt("QR_SIZE", 256)
	collect(err)
	cfg.RedisDB, err = getInt("REDIS_DB", 0)
	collect(err)

	cfg.TOTPReplayProtection, err = getBool("TOTP_REPLAY_PROTECTION", false)
	collect(err)
	cfg.RotateSecretOnLogin, err = getBool("ROTATE_SECRET_ON_LOGIN", true)
	collect(err)
	cfg.RateLimitEnabled, err = getBool("RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.DBDebug, err = getBool("DB_DEBUG", false)
	collect(err)

	//Timeout values are optional and have a default value if not
	cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.HTTPIdleTimeout, err = getDuration("HTTP_IDLE_TIMEOUT", time.Minute)
	collect(err)

	if len(errs) > 0 {
		return nil, errs[0]
	}

	if cfg.TOTPWindow < 1 {
		cfg.TOTPWindow = 1
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// StoreKindOf maps a store URI to one of the supported backends.
func StoreKindOf(uri string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("invalid STORE_URI: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "memory":
		return StoreMemory, nil
	case "postgres", "postgresql":
		if strings.Trim(u.Path, "/") == "" {
			return "", fmt.Errorf("STORE_URI must include a database name")
		}
		return StorePostgres, nil
	case "mongodb", "mongodb+srv":
		return StoreMongo, nil
	default:
		return "", fmt.Errorf("unsupported STORE_URI scheme %q", u.Scheme)
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := getEnv(k, ""); v != "" {
			return v
		}
	}
	return ""
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return i, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}
