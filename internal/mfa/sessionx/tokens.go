// Package sessionx mints and checks the two cookies issued after a
// successful verification: the MFA session token (this browser session has
// passed MFA) and the trusted-device token (skip MFA on this device for a
// bounded period).
package sessionx

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names, matched by the web frontends.
const (
	SessionCookie       = "mfa_session"
	TrustedDeviceCookie = "mfa_trusted_device"
)

var (
	ErrNoSecret     = errors.New("sessionx: signing secret not configured")
	ErrInvalidToken = errors.New("sessionx: invalid token")
)

// Manager signs and verifies the session and trusted-device JWTs with
// separate HS256 secrets, so leaking one cookie's key never extends to the
// other.
type Manager struct {
	sessionSecret []byte
	trustedSecret []byte
	sessionTTL    time.Duration
	trustedTTL    time.Duration
	now           func() time.Time
}

type Config struct {
	SessionSecret string
	TrustedSecret string
	SessionTTL    time.Duration // default 30m
	TrustedTTL    time.Duration // default 30 days
	Now           func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.TrustedTTL <= 0 {
		cfg.TrustedTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		sessionSecret: []byte(cfg.SessionSecret),
		trustedSecret: []byte(cfg.TrustedSecret),
		sessionTTL:    cfg.SessionTTL,
		trustedTTL:    cfg.TrustedTTL,
		now:           cfg.Now,
	}
}

func (m *Manager) SessionTTL() time.Duration { return m.sessionTTL }
func (m *Manager) TrustedTTL() time.Duration { return m.trustedTTL }

type sessionClaims struct {
	jwt.RegisteredClaims
}

type trustedClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// MintSessionToken issues the MFA-session JWT for a verified user.
func (m *Manager) MintSessionToken(userID string) (string, error) {
	if len(m.sessionSecret) == 0 {
		return "", ErrNoSecret
	}

	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.sessionSecret)
}

// CheckSessionToken returns the user id carried by a valid session token.
func (m *Manager) CheckSessionToken(token string) (string, error) {
	claims := &sessionClaims{}
	if err := m.parse(token, claims, m.sessionSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// MintTrustedDeviceToken issues the remember-device JWT binding a user to a
// device id.
func (m *Manager) MintTrustedDeviceToken(userID, deviceID string) (string, error) {
	if len(m.trustedSecret) == 0 {
		return "", ErrNoSecret
	}

	now := m.now()
	claims := trustedClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.trustedTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.trustedSecret)
}

// CheckTrustedDeviceToken returns the (userID, deviceID) pair from a valid
// trusted-device token.
func (m *Manager) CheckTrustedDeviceToken(token string) (string, string, error) {
	claims := &trustedClaims{}
	if err := m.parse(token, claims, m.trustedSecret); err != nil {
		return "", "", err
	}
	return claims.Subject, claims.DeviceID, nil
}

func (m *Manager) parse(token string, claims jwt.Claims, secret []byte) error {
	if len(secret) == 0 {
		return ErrNoSecret
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashUserAgent fingerprints a user agent string for trusted-device matching.
func HashUserAgent(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// DeriveIPPrefix reduces an address to a coarse network prefix (first two
// IPv4 octets, or first three IPv6 groups) so device checks survive DHCP
// churn without storing the full address.
func DeriveIPPrefix(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d", v4[0], v4[1])
	}

	groups := strings.Split(parsed.String(), ":")
	if len(groups) < 3 {
		return parsed.String()
	}
	return strings.Join(groups[:3], ":")
}

// DeviceFingerprint derives the stored fingerprint for a trusted device.
func DeviceFingerprint(userID, userAgentHash, ipPrefix string) string {
	sum := sha256.Sum256([]byte(userID + "|" + userAgentHash + "|" + ipPrefix))
	return hex.EncodeToString(sum[:])
}
