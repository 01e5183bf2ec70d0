// ABOUTME: Session stores holding the signed-in user between calls.
// ABOUTME: MemorySessionStore is process scoped; FileSessionStore keeps a signed JWT.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/harperreed/forma/internal/models"
)

// SessionFileName is the file FileSessionStore writes in its directory.
const SessionFileName = "forma-session"

// DefaultSessionTTL bounds how long a saved session stays valid.
const DefaultSessionTTL = 12 * time.Hour

// SessionStore persists the current session. Load returns (nil, nil) when
// there is no usable session.
type SessionStore interface {
	Load() (*models.Session, error)
	Save(s *models.Session) error
	Clear() error
}

// MemorySessionStore keeps the session in memory.
type MemorySessionStore struct {
	mu      sync.Mutex
	session *models.Session
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemorySessionStore) Save(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemorySessionStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// sessionClaims is the JWT payload written by FileSessionStore.
type sessionClaims struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	jwt.RegisteredClaims
}

// FileSessionStore keeps an HS256-signed JWT in a file. Tokens that are
// expired, tampered with or unreadable load as no session.
type FileSessionStore struct {
	path   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewFileSessionStore stores the session under dir/forma-session.
func NewFileSessionStore(dir string, secret []byte, ttl time.Duration) (*FileSessionStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &FileSessionStore{
		path:   filepath.Join(dir, SessionFileName),
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Path returns the session file path.
func (f *FileSessionStore) Path() string { return f.path }

func (f *FileSessionStore) Load() (*models.Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	claims := &sessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(strings.TrimSpace(string(data)), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return f.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, nil
	}

	return &models.Session{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}

func (f *FileSessionStore) Save(s *models.Session) error {
	now := f.now()
	claims := &sessionClaims{
		UserID: s.UserID,
		Role:   s.Role,
		Name:   s.Name,
		Email:  s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(f.ttl)),
			Issuer:    "forma",
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(signed), 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (f *FileSessionStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// RuntimeDir returns the per-boot directory for session files:
// $XDG_RUNTIME_DIR/forma, or a per-user directory under the temp dir.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "forma")
	}
	return filepath.Join(os.TempDir(), "forma-"+strconv.Itoa(os.Getuid()))
}
