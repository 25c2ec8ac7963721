package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ddanilin/storefront/internal/authclient"
	"github.com/ddanilin/storefront/internal/logging"
	"github.com/ddanilin/storefront/internal/models"
	"github.com/ddanilin/storefront/internal/store"
)

type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
)

var (
	ErrValidation = errors.New("validation")

	ErrEmailInvalid     = fmt.Errorf("invalid email address: %w", ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("password must be at least 8 characters: %w", ErrValidation)
	ErrPasswordNoUpper  = fmt.Errorf("password must contain an uppercase letter: %w", ErrValidation)
	ErrPasswordNoLower  = fmt.Errorf("password must contain a lowercase letter: %w", ErrValidation)
	ErrPasswordNoDigit  = fmt.Errorf("password must contain a digit: %w", ErrValidation)
	ErrNameRequired     = fmt.Errorf("name is required: %w", ErrValidation)
)

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*authclient.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*authclient.AuthResult, error)
	WhoAmI(ctx context.Context, token string) (*authclient.AuthResult, error)
}

// Machine owns the visitor's auth lifecycle:
// anonymous -> authenticating -> authenticated, back to anonymous on
// logout or token rejection. Authenticating is always followed by
// exactly one transition. The machine is shared by concurrent handlers;
// all state lives behind mu, and the network call runs outside it.
type Machine struct {
	api AuthAPI
	st  *store.Store

	mu      sync.RWMutex
	status  Status
	profile *models.UserProfile
	token   string
	lastErr error
	subs    []func(context.Context)
}

func NewMachine(api AuthAPI, st *store.Store) *Machine {
	return &Machine{api: api, st: st, status: StatusAnonymous}
}

func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Machine) Profile() *models.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

func (m *Machine) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Machine) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// OnAuthenticated registers fn to run synchronously on every
// transition into authenticated, after the state is already set.
func (m *Machine) OnAuthenticated(fn func(context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// CachedAvatar survives logout so the next login on this device can
// render a profile image before the network responds.
func (m *Machine) CachedAvatar() string {
	if m.st == nil {
		return ""
	}
	raw, ok, err := m.st.Get(store.KeyAvatar)
	if err != nil || !ok {
		return ""
	}
	return string(raw)
}

func (m *Machine) Login(ctx context.Context, email, password string) error {
	l := logging.FromContext(ctx).With("svc", "session.login")

	if err := validateEmail(email); err != nil {
		return m.recordValidation(err)
	}
	if password == "" {
		return m.recordValidation(fmt.Errorf("password is required: %w", ErrValidation))
	}

	m.toAuthenticating()

	res, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.toAnonymous(err)
		l.Warn("login_failed", "error", err)
		return err
	}

	m.establish(ctx, res)
	l.Info("login_ok", "user", res.User.ID)
	return nil
}

func (m *Machine) Register(ctx context.Context, name, email, password string) error {
	l := logging.FromContext(ctx).With("svc", "session.register")

	if name == "" {
		return m.recordValidation(ErrNameRequired)
	}
	if err := validateEmail(email); err != nil {
		return m.recordValidation(err)
	}
	if err := ValidatePassword(password); err != nil {
		return m.recordValidation(err)
	}

	m.toAuthenticating()

	res, err := m.api.Register(ctx, name, email, password)
	if err != nil {
		m.toAnonymous(err)
		l.Warn("register_failed", "error", err)
		return err
	}

	m.establish(ctx, res)
	l.Info("register_ok", "user", res.User.ID)
	return nil
}

// RestoreSession runs once at startup. A missing token is silent
// anonymous; a locally expired one is dropped without a network call.
func (m *Machine) RestoreSession(ctx context.Context) error {
	l := logging.FromContext(ctx).With("svc", "session.restore")

	token, ok := m.storedToken()
	if !ok {
		m.toAnonymous(nil)
		return nil
	}

	if expired(token) {
		l.Info("token_expired_locally")
		m.dropToken()
		m.toAnonymous(nil)
		return nil
	}

	m.toAuthenticating()

	res, err := m.api.WhoAmI(ctx, token)
	if err != nil {
		m.toAnonymous(err)
		var rejected *authclient.RejectedError
		if errors.As(err, &rejected) {
			// Token is dead; a transport failure keeps it for the
			// next attempt.
			m.dropToken()
		}
		l.Warn("restore_failed", "error", err)
		return err
	}

	m.establish(ctx, res)
	l.Info("restore_ok", "user", res.User.ID)
	return nil
}

// Logout is idempotent; calling it while anonymous is a no-op.
func (m *Machine) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusAnonymous && m.profile == nil {
		m.mu.Unlock()
		return nil
	}
	m.profile = nil
	m.lastErr = nil
	m.status = StatusAnonymous
	m.token = ""
	m.mu.Unlock()

	if m.st != nil {
		_ = m.st.Delete(store.KeyAuthToken)
	}
	logging.FromContext(ctx).Info("logout_ok", "svc", "session.logout")
	return nil
}

func (m *Machine) recordValidation(err error) error {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	return err
}

func (m *Machine) toAuthenticating() {
	m.mu.Lock()
	m.status = StatusAuthenticating
	m.lastErr = nil
	m.mu.Unlock()
}

func (m *Machine) toAnonymous(err error) {
	m.mu.Lock()
	m.status = StatusAnonymous
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Machine) establish(ctx context.Context, res *authclient.AuthResult) {
	user := res.User

	m.mu.Lock()
	m.profile = &user
	m.token = res.Token
	m.status = StatusAuthenticated
	m.lastErr = nil
	subs := make([]func(context.Context), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if m.st != nil {
		if err := m.st.Put(store.KeyAuthToken, []byte(res.Token)); err != nil {
			logging.FromContext(ctx).Error("token_persist_failed", "error", err)
		}
		if user.AvatarURI != "" {
			if err := m.st.Put(store.KeyAvatar, []byte(user.AvatarURI)); err != nil {
				logging.FromContext(ctx).Error("avatar_persist_failed", "error", err)
			}
		}
	}

	// Subscribers run with no lock held and after the state is already
	// authenticated, so a subscriber failure cannot wedge the
	// transition and subscribers may read the machine freely.
	for _, fn := range subs {
		fn(ctx)
	}
}

func (m *Machine) storedToken() (string, bool) {
	if m.st == nil {
		return "", false
	}
	raw, ok, err := m.st.Get(store.KeyAuthToken)
	if err != nil || !ok || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// dropToken revokes the credential locally; the cached avatar is
// deliberately kept.
func (m *Machine) dropToken() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	if m.st != nil {
		_ = m.st.Delete(store.KeyAuthToken)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailInvalid
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrEmailInvalid
	}
	return nil
}

// ValidatePassword enforces the client-side strength rules; it never
// touches the network.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	return nil
}

// expired reports whether a JWT carries an exp claim that is already
// past. Opaque or malformed tokens report false and are left to the
// remote whoami check.
func expired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
