// Package credentials resolves the operator settings the proxy starts with:
// listen address, superuser name and a bcrypt hash of the superuser password.
package credentials

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/zjrosen/authprx/internal/log"
)

// DefaultPort is used when no valid port is configured.
const DefaultPort uint16 = 80

var (
	ErrNoUser     = errors.New("no user given")
	ErrNoPassword = errors.New("no password given")
)

// Settings are the raw operator values after flag, environment and config
// file layering. Empty means not given.
type Settings struct {
	Host     string
	Port     string
	User     string
	Password string

	// PortFallbacks are lower-precedence port values tried in order when
	// Port is missing or unparsable.
	PortFallbacks []string
}

// Operator is the resolved operator identity. The plain-text password is
// not retained.
type Operator struct {
	Host         string
	Port         uint16
	User         string
	PasswordHash []byte
}

// Addr returns host:port for listening.
func (o Operator) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(int(o.Port)))
}

// Verify reports whether candidate matches the operator password.
func (o Operator) Verify(candidate string) bool {
	return Verify(o.PasswordHash, candidate)
}

// Resolve validates s and hashes the password with bcrypt.DefaultCost.
func Resolve(s Settings) (Operator, error) {
	return ResolveWithCost(s, bcrypt.DefaultCost)
}

// ResolveWithCost is Resolve with an explicit bcrypt cost.
// An unparsable port is skipped in favour of the first valid fallback;
// with none left it becomes DefaultPort with a warning.
func ResolveWithCost(s Settings, cost int) (Operator, error) {
	port, ok := ParsePort(s.Port)
	if !ok && s.Port != "" {
		log.Warn(log.CatAuth, "Ignoring invalid port", "raw", s.Port)
	}
	for _, raw := range s.PortFallbacks {
		if ok {
			break
		}
		port, ok = ParsePort(raw)
	}
	if !ok {
		log.Warn(log.CatAuth, "No port given, using default", "port", DefaultPort, "raw", s.Port)
		port = DefaultPort
	}

	if s.User == "" {
		log.Error(log.CatAuth, "No user given")
		return Operator{}, ErrNoUser
	}
	if s.Password == "" {
		log.Error(log.CatAuth, "No password given")
		return Operator{}, ErrNoPassword
	}

	hash, err := Hash(s.Password, cost)
	if err != nil {
		return Operator{}, err
	}

	log.Debug(log.CatAuth, "Operator resolved", "user", s.User, "host", s.Host, "port", port)
	return Operator{
		Host:         s.Host,
		Port:         port,
		User:         s.User,
		PasswordHash: hash,
	}, nil
}

// ParsePort parses a decimal port in 0..65535. Port 0 lets the system
// pick one.
func ParsePort(raw string) (uint16, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	p, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(p), true
}

// Hash returns the bcrypt hash of password at cost.
func Hash(password string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// Verify reports whether candidate matches hash.
func Verify(hash []byte, candidate string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}
