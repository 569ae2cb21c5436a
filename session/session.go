package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"court-desk/api"
	"court-desk/logging"
	"court-desk/types"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrForbidden   = errors.New("this command needs an admin account")
)

// fallbackTTL applies to opaque tokens that carry no exp claim.
const fallbackTTL = 12 * time.Hour

type Store interface {
	SaveSession(ctx context.Context, sess types.Session, ttl time.Duration) error
	GetSession(ctx context.Context, chatID int64) (*types.Session, error)
	DeleteSession(ctx context.Context, chatID int64) error
}

type Authenticator interface {
	SystemLogin(ctx context.Context, username, password string) (api.LoginResult, error)
}

// Manager owns the login lifecycle of every chat. Sessions live in Redis, so a bot
// restart keeps staff logged in until their token expires.
type Manager struct {
	store Store
	auth  Authenticator
	now   func() time.Time
}

func NewManager(store Store, auth Authenticator) *Manager {
	return &Manager{store: store, auth: auth, now: time.Now}
}

// Current returns the chat's live session or ErrNotLoggedIn.
func (m *Manager) Current(ctx context.Context, chatID int64) (types.Session, error) {
	sess, err := m.store.GetSession(ctx, chatID)
	if err != nil {
		return types.Session{}, fmt.Errorf("reading session: %w", err)
	}
	if sess == nil || sess.Expired(m.now()) {
		return types.Session{}, ErrNotLoggedIn
	}
	return *sess, nil
}

func (m *Manager) Login(ctx context.Context, chatID int64, username, password string) (types.Session, error) {
	res, err := m.auth.SystemLogin(ctx, username, password)
	if err != nil {
		return types.Session{}, err
	}

	now := m.now()
	claims := readClaims(res.Token)

	sess := types.Session{
		ChatID:    chatID,
		Token:     res.Token,
		User:      res.User,
		ExpiresAt: now.Add(fallbackTTL),
	}
	if !claims.expiresAt.IsZero() {
		sess.ExpiresAt = claims.expiresAt
	}
	if sess.User.Role == "" {
		sess.User.Role = claims.role
	}
	if sess.User.Role != types.RoleAdmin && sess.User.Role != types.RoleCashier {
		return types.Session{}, fmt.Errorf("account role %q cannot use the desk", sess.User.Role)
	}

	if err := m.store.SaveSession(ctx, sess, sess.ExpiresAt.Sub(now)); err != nil {
		return types.Session{}, fmt.Errorf("saving session: %w", err)
	}

	logging.FromContext(ctx).
		WithField("user_id", sess.User.ID).
		WithField("role", sess.User.Role).
		Info("staff logged in")
	return sess, nil
}

func (m *Manager) Logout(ctx context.Context, chatID int64) error {
	return m.store.DeleteSession(ctx, chatID)
}

type tokenClaims struct {
	expiresAt time.Time
	role      types.Role
}

// readClaims reads exp and role without verifying the signature. The backend
// verifies the token on every request; the bot only needs the expiry.
func readClaims(token string) tokenClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}
	}

	var tc tokenClaims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.expiresAt = exp.Time
	}
	if role, ok := claims["role"].(string); ok {
		tc.role = types.Role(role)
	}
	return tc
}

// RequireAdmin guards catalog and finance commands.
func RequireAdmin(sess types.Session) error {
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

type ctxKey struct{}

func ToContext(ctx context.Context, sess types.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

func FromContext(ctx context.Context) (types.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(types.Session)
	return sess, ok
}

// AuthEditor adds the bearer token of the session carried by ctx.
// Requests without a session (login) go out unauthenticated.
func AuthEditor(ctx context.Context, req *http.Request) error {
	if sess, ok := FromContext(ctx); ok && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	return nil
}
