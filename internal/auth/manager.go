// ABOUTME: Identity manager handling registration, login and the current session.
// ABOUTME: Email uniqueness is checked under the users table lock.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

var (
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAuthenticated   = errors.New("not signed in")
	ErrForbidden          = errors.New("not allowed for this role")
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

func (in RegisterInput) validate() error {
	v := models.Violations{}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		v.Add("email", "must be a valid email address")
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if !models.IsValidRole(string(in.Role)) {
		v.Add("role", "must be trainer or client")
	}
	return v.Err("")
}

// Manager owns the current session and the user lifecycle.
type Manager struct {
	store    *storage.Store
	sessions SessionStore
	hasher   *Hasher
	logger   *zap.Logger

	mu      sync.RWMutex
	current *models.Session
}

// NewManager creates a Manager. A nil hasher uses bcrypt.DefaultCost and a
// nil logger discards output.
func NewManager(store *storage.Store, sessions SessionStore, hasher *Hasher, logger *zap.Logger) *Manager {
	if hasher == nil {
		hasher = NewHasher(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	return &Manager{store: store, sessions: sessions, hasher: hasher, logger: logger}
}

// Hasher returns the password hasher.
func (m *Manager) Hasher() *Hasher { return m.hasher }

// Restore loads the saved session. A session whose user no longer exists
// is discarded.
func (m *Manager) Restore(ctx context.Context) (*models.Session, error) {
	s, err := m.sessions.Load()
	if err != nil {
		return nil, err
	}
	if s != nil {
		u, err := storage.Find[models.User](ctx, m.store, models.TableUsers, s.UserID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			m.logger.Debug("discarding session for missing user", zap.String("user_id", s.UserID))
			_ = m.sessions.Clear()
			s = nil
		}
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Register creates a user and an empty profile, then signs the user in.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	unlock := m.store.Lock(models.TableUsers)
	defer unlock()

	existing, err := m.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	u := models.NewUser(strings.TrimSpace(in.Name), in.Email, in.Role, hash)
	if _, err := m.store.Put(ctx, models.TableUsers, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := m.store.Put(ctx, models.TableProfiles, models.NewProfile(u.ID)); err != nil {
		// Drop the user so the email can register again.
		if derr := m.store.Delete(ctx, models.TableUsers, u.ID); derr != nil {
			m.logger.Error("remove user after failed profile", zap.String("user_id", u.ID), zap.Error(derr))
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	m.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	if err := m.setSession(models.SessionFor(u)); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials and signs the user in. Unknown emails and
// wrong passwords fail with the same error.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !m.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if IsLegacyHash(u.PasswordHash) {
		m.upgradeHash(ctx, u, password)
	}

	if err := m.setSession(models.SessionFor(u)); err != nil {
		return nil, err
	}
	return u, nil
}

// upgradeHash replaces a legacy digest with bcrypt. Failures leave the
// legacy hash in place.
func (m *Manager) upgradeHash(ctx context.Context, u *models.User, password string) {
	hash, err := m.hasher.Hash(password)
	if err != nil {
		m.logger.Warn("password rehash failed", zap.Error(err))
		return
	}
	u.PasswordHash = hash
	if _, err := m.store.Put(ctx, models.TableUsers, u); err != nil {
		m.logger.Warn("password rehash not saved", zap.String("user_id", u.ID), zap.Error(err))
	}
}

// Logout clears the session. Calling it without a session is a no-op.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return m.sessions.Clear()
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// RequireRole reports whether a session exists and its role is one of roles.
func (m *Manager) RequireRole(roles ...models.Role) bool {
	s := m.Session()
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Authorize is RequireRole returning ErrNotAuthenticated or ErrForbidden.
func (m *Manager) Authorize(roles ...models.Role) (*models.Session, error) {
	s := m.Session()
	if s == nil {
		return nil, ErrNotAuthenticated
	}
	if len(roles) > 0 && !m.RequireRole(roles...) {
		return nil, ErrForbidden
	}
	return s, nil
}

// FindByEmail returns the user with email (case-insensitive), or nil.
func (m *Manager) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := storage.All[models.User](ctx, m.store, models.TableUsers)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.EmailMatches(email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *Manager) setSession(s *models.Session) error {
	if err := m.sessions.Save(s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}
