package sessionauth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/permission"
)

// envPrefix namespaces every environment override.
const envPrefix = "SESSIONAUTH_"

// Session storage backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full engine and server configuration. Treat it as immutable
// once passed to the builder.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	JWT      JWTConfig      `yaml:"jwt"`
	Cookie   CookieConfig   `yaml:"cookie"`
	Password PasswordConfig `yaml:"password"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Roles    RolesConfig    `yaml:"roles"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// RefreshThreshold in (0,1). A session whose remaining lifetime drops
	// below TTL*RefreshThreshold is renewed on the next request.
	RefreshThreshold float64 `yaml:"refresh_threshold"`
	Backend          string  `yaml:"backend"`
	RedisPrefix      string  `yaml:"redis_prefix"`
	// LockWait bounds how long a request waits for another request's lock on
	// the same session.
	LockWait time.Duration `yaml:"lock_wait"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig selects the token signing algorithm and keys. Keys may be given
// inline or as file paths; files win when both are set.
type JWTConfig struct {
	SigningMethod  string        `yaml:"signing_method"` // "hs256" (default) or "ed25519"
	Secret         string        `yaml:"secret"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	PrivateKey     []byte        `yaml:"-"`
	PublicKey      []byte        `yaml:"-"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	Leeway         time.Duration `yaml:"leeway"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the cookie that carries the token.
type CookieConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"same_site"` // "lax", "strict" or "none"
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm        string `yaml:"algorithm"` // "argon2id" (default) or "bcrypt"
	Memory           uint32 `yaml:"memory_kib"`
	Time             uint32 `yaml:"time"`
	Parallelism      uint8  `yaml:"parallelism"`
	SaltLength       uint32 `yaml:"salt_length"`
	KeyLength        uint32 `yaml:"key_length"`
	MaxPasswordBytes int    `yaml:"max_password_bytes"`
	BcryptCost       int    `yaml:"bcrypt_cost"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

type DatabaseConfig struct {
	PostgresURL     string        `yaml:"postgres_url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

/*
====================================
SERVER CONFIG
====================================
*/

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed logins per username. It needs a Redis client
// and is ignored when the engine is built without one.
type ThrottleConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	EnableLatencyHistograms bool   `yaml:"latency_histograms"`
	Path                    string `yaml:"path"`
}

/*
====================================
ROLES CONFIG
====================================
*/

// RolesConfig overrides the built-in role hierarchy. When both maps are
// empty the default super_admin > admin > user hierarchy applies.
type RolesConfig struct {
	Subordinates map[string][]string `yaml:"subordinates"`
	Permissions  map[string][]string `yaml:"permissions"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration that validates once a JWT secret or
// key pair is supplied.
func DefaultConfig() Config {
	argon := password.DefaultArgon2Config()
	return Config{
		Session: SessionConfig{
			TTL:              time.Hour,
			RefreshThreshold: 0.5,
			Backend:          BackendRedis,
			RedisPrefix:      "as",
			LockWait:         2 * time.Second,
			LockTTL:          5 * time.Second,
		},
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
		},
		Cookie: CookieConfig{
			Name:     "access_token",
			Path:     "/",
			Secure:   true,
			SameSite: "lax",
		},
		Password: PasswordConfig{
			Algorithm:        string(password.AlgorithmArgon2id),
			Memory:           argon.Memory,
			Time:             argon.Time,
			Parallelism:      argon.Parallelism,
			SaltLength:       argon.SaltLength,
			KeyLength:        argon.KeyLength,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			BcryptCost:       password.DefaultBcryptCost,
		},
		Throttle: ThrottleConfig{
			Enabled:     true,
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

/*
====================================
LOADING
====================================
*/

// LoadConfig reads a YAML file over the defaults, applies SESSIONAUTH_*
// environment overrides, loads key files and validates the result. An empty
// path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.loadKeyFiles(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"JWT_SECRET":         &cfg.JWT.Secret,
		"JWT_METHOD":         &cfg.JWT.SigningMethod,
		"SESSION_BACKEND":    &cfg.Session.Backend,
		"DATABASE_URL":       &cfg.Database.PostgresURL,
		"REDIS_ADDR":         &cfg.Redis.Addr,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"SERVER_ADDR":        &cfg.Server.Addr,
		"LOG_LEVEL":          &cfg.Logging.Level,
		"LOG_FORMAT":         &cfg.Logging.Format,
		"PASSWORD_ALGORITHM": &cfg.Password.Algorithm,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(envPrefix + "SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSESSION_TTL: %w", envPrefix, err)
		}
		cfg.Session.TTL = d
	}
	if v := os.Getenv(envPrefix + "COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCOOKIE_SECURE: %w", envPrefix, err)
		}
		cfg.Cookie.Secure = b
	}
	return nil
}

func (c *Config) loadKeyFiles() error {
	if c.JWT.PrivateKeyFile != "" {
		b, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt private key: %w", err)
		}
		c.JWT.PrivateKey = b
	}
	if c.JWT.PublicKeyFile != "" {
		b, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt public key: %w", err)
		}
		c.JWT.PublicKey = b
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Roles.Subordinates = cloneTable(cfg.Roles.Subordinates)
	out.Roles.Permissions = cloneTable(cfg.Roles.Permissions)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneTable(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	// Session
	if c.Session.TTL < time.Second {
		return errors.New("session ttl must be >= 1s")
	}
	if c.Session.RefreshThreshold <= 0 || c.Session.RefreshThreshold >= 1 {
		return errors.New("session refresh_threshold must be in (0,1)")
	}
	switch c.Session.Backend {
	case BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	if c.Session.LockWait <= 0 || c.Session.LockTTL <= 0 {
		return errors.New("session lock_wait and lock_ttl must be > 0")
	}
	if c.Session.LockTTL < c.Session.LockWait {
		return errors.New("session lock_ttl must be >= lock_wait")
	}

	// JWT
	if _, err := jwt.NewCodec(c.codecConfig(nil)); err != nil {
		return err
	}
	if c.JWT.Leeway < 0 {
		return errors.New("jwt leeway must be >= 0")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("cookie name must not be empty")
	}
	if _, err := c.Cookie.SameSiteMode(); err != nil {
		return err
	}
	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		return errors.New("cookie same_site=none requires secure")
	}

	// Password
	if _, err := password.New(c.passwordConfig()); err != nil {
		return err
	}

	// Throttle
	if c.Throttle.Enabled && (c.Throttle.MaxAttempts <= 0 || c.Throttle.Window <= 0) {
		return errors.New("throttle max_attempts and window must be > 0 when enabled")
	}

	// Logging
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.New("logging format must be 'text' or 'json'")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer_size must be > 0 when enabled")
	}

	// Roles
	if _, err := c.roleGraph(); err != nil {
		return err
	}
	return nil
}

// SameSiteMode maps the configured string to its net/http value.
func (c CookieConfig) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unsupported cookie same_site %q", c.SameSite)
	}
}

func (c *Config) codecConfig(now func() time.Time) jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)),
		Secret:        []byte(c.JWT.Secret),
		PrivateKey:    c.JWT.PrivateKey,
		PublicKey:     c.JWT.PublicKey,
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		Leeway:        c.JWT.Leeway,
		Now:           now,
	}
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Algorithm: password.Algorithm(c.Password.Algorithm),
		Argon2: password.Argon2Config{
			Memory:           c.Password.Memory,
			Time:             c.Password.Time,
			Parallelism:      c.Password.Parallelism,
			SaltLength:       c.Password.SaltLength,
			KeyLength:        c.Password.KeyLength,
			MaxPasswordBytes: c.Password.MaxPasswordBytes,
		},
		BcryptCost: c.Password.BcryptCost,
	}
}

func (c *Config) roleGraph() (*permission.Graph, error) {
	if len(c.Roles.Subordinates) == 0 && len(c.Roles.Permissions) == 0 {
		return permission.DefaultGraph(), nil
	}
	subs := make(map[permission.Role][]permission.Role, len(c.Roles.Subordinates))
	for role, children := range c.Roles.Subordinates {
		list := make([]permission.Role, 0, len(children))
		for _, child := range children {
			list = append(list, permission.Role(child))
		}
		subs[permission.Role(role)] = list
	}
	grants := make(map[permission.Role][]permission.Permission, len(c.Roles.Permissions))
	for role, perms := range c.Roles.Permissions {
		list := make([]permission.Permission, 0, len(perms))
		for _, p := range perms {
			list = append(list, permission.Permission(p))
		}
		grants[permission.Role(role)] = list
	}
	g, err := permission.NewGraph(subs, grants)
	if err != nil {
		return nil, fmt.Errorf("roles: %w", err)
	}
	for _, required := range []permission.Role{permission.RoleSuperAdmin, permission.RoleAdmin, permission.RoleUser} {
		if !g.Has(required) {
			return nil, fmt.Errorf("roles: %w: %s must be declared", permission.ErrUnknownRole, required)
		}
	}
	return g, nil
}
