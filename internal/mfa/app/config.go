package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the service configuration, loaded from the environment.
type Config struct {
	// SessionSecret signs the MFA session JWTs. Required.
	SessionSecret string `env:"MFA_SESSION_SECRET,notEmpty"`
	// TrustedDeviceSecret signs the trusted-device JWTs. Required and kept
	// separate from the session secret.
	TrustedDeviceSecret string `env:"MFA_TRUSTED_DEVICE_SECRET,notEmpty"`

	SessionTTL       time.Duration `env:"MFA_SESSION_TTL" envDefault:"30m"`
	TrustedDeviceTTL time.Duration `env:"MFA_TRUSTED_DEVICE_TTL" envDefault:"720h"` // 30 days

	// TOTPIssuer is the label shown in authenticator apps.
	TOTPIssuer string `env:"MFA_TOTP_ISSUER" envDefault:"Ikimina SACCO"`
	// TOTPSkew is how many adjacent 30s steps are tolerated each side.
	TOTPSkew int `env:"MFA_TOTP_SKEW" envDefault:"1"`
	// ReplayTTL is how long a redeemed TOTP step stays blocked.
	ReplayTTL time.Duration `env:"MFA_REPLAY_TTL" envDefault:"60s"`

	// Attempt budgets enforced per member and per client address.
	UserMaxAttempts int           `env:"MFA_USER_MAX_ATTEMPTS" envDefault:"5"`
	UserWindow      time.Duration `env:"MFA_USER_WINDOW" envDefault:"5m"`
	IPMaxAttempts   int           `env:"MFA_IP_MAX_ATTEMPTS" envDefault:"10"`
	IPWindow        time.Duration `env:"MFA_IP_WINDOW" envDefault:"5m"`

	ChallengeTTL time.Duration `env:"MFA_CHALLENGE_TTL" envDefault:"5m"`

	DatabaseFile string `env:"MFA_DATABASE_FILE" envDefault:"mfa.db"`
	PepperFile   string `env:"MFA_PEPPER_FILE" envDefault:"pepper"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}
