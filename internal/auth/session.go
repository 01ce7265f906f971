package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alhaqil/storefront/internal/backend"
	"github.com/alhaqil/storefront/internal/cart"
	"github.com/alhaqil/storefront/internal/events"
	"github.com/alhaqil/storefront/internal/models"
	"github.com/alhaqil/storefront/internal/store"
)

// MaxAge is how long an upstream session is trusted before the user has to
// log in again.
const MaxAge = 24 * time.Hour

var (
	ErrNoSession = errors.New("auth: no session")
	ErrExpired   = errors.New("auth: session expired")
)

// Backend is the slice of the commerce API the manager needs.
type Backend interface {
	Login(ctx context.Context, email, password, locale string) (*backend.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// Syncer is the cart engine surface triggered by auth transitions.
type Syncer interface {
	Sync(ctx context.Context, sessionID string, ident cart.Identity, locale string) ([]models.CartLine, error)
	Logout(sessionID string) error
}

// Manager owns the authenticated identity of a storefront session: token,
// user id and issue timestamp in the durable store, with the 24h expiry
// policy and the cart sync hooks on login/restore/logout.
type Manager struct {
	store  *store.Store
	api    Backend
	cart   Syncer
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewManager(s *store.Store, api Backend, cartEngine Syncer, pub events.Publisher, log *slog.Logger) *Manager {
	return &Manager{store: s, api: api, cart: cartEngine, events: pub, log: log, now: time.Now}
}

// Login authenticates upstream, persists the session and reconciles the
// guest cart with the server cart. A failed sync does not fail the login.
func (m *Manager) Login(ctx context.Context, sessionID, email, password, locale string) (*models.Session, error) {
	res, err := m.api.Login(ctx, email, password, locale)
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		SessionID: sessionID,
		Token:     res.Token,
		UserID:    res.User.ID,
		IssuedAt:  issuedAt(res.Token, m.now()),
	}
	if err := m.store.SaveSession(sess); err != nil {
		return nil, err
	}

	if _, err := m.cart.Sync(ctx, sessionID, cart.Identity{UserID: sess.UserID, Token: sess.Token}, locale); err != nil {
		m.log.Warn("login_cart_sync_failed", "user_id", sess.UserID, "error", err)
	}

	m.publish(ctx, sessionID, map[string]any{"type": "user_logged_in", "user_id": sess.UserID})
	return sess, nil
}

// Current returns the session if one exists and is still fresh. An expired
// session is torn down before the error is returned, so a stale token can
// never reach an authenticated call.
func (m *Manager) Current(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := m.store.Session(sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if m.expired(sess) {
		m.teardown(ctx, sessionID)
		return nil, ErrExpired
	}
	return sess, nil
}

// Restore is the app-start path: validate the persisted session and trigger
// a reconciliation. Sync failure is logged and the session stays valid.
func (m *Manager) Restore(ctx context.Context, sessionID, locale string) (*models.Session, error) {
	sess, err := m.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := m.cart.Sync(ctx, sessionID, cart.Identity{UserID: sess.UserID, Token: sess.Token}, locale); err != nil {
		m.log.Warn("restore_cart_sync_failed", "user_id", sess.UserID, "error", err)
	}
	return sess, nil
}

// Logout invalidates the upstream session best-effort, then unconditionally
// clears the persisted auth fields and the local cart.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sess, err := m.store.Session(sessionID); err == nil {
		if rerr := m.api.Logout(ctx, sess.Token); rerr != nil {
			m.log.Warn("remote_logout_failed", "user_id", sess.UserID, "error", rerr)
		}
		m.publish(ctx, sessionID, map[string]any{"type": "user_logged_out", "user_id": sess.UserID})
	}
	m.teardown(ctx, sessionID)
	return nil
}

// Teardown clears local auth and cart state without a remote call. It is
// also the required reaction to a 401 from any authenticated endpoint.
func (m *Manager) Teardown(ctx context.Context, sessionID string) {
	m.teardown(ctx, sessionID)
}

func (m *Manager) teardown(ctx context.Context, sessionID string) {
	if err := m.store.ClearSession(sessionID); err != nil {
		m.log.Error("session_clear_failed", "error", err)
	}
	if err := m.cart.Logout(sessionID); err != nil {
		m.log.Error("cart_logout_failed", "error", err)
	}
}

func (m *Manager) expired(sess *models.Session) bool {
	age := m.now().Sub(time.Unix(sess.IssuedAt, 0))
	if age > MaxAge {
		return true
	}
	// When the upstream token is a JWT its own exp claim tightens the check.
	if exp, ok := tokenExpiry(sess.Token); ok && m.now().After(exp) {
		return true
	}
	return false
}

func (m *Manager) publish(ctx context.Context, sessionID string, event map[string]any) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishEvent(ctx, events.TopicAuth, sessionID, event); err != nil {
		m.log.Warn("auth_event_publish_failed", "error", err)
	}
}

// issuedAt prefers the token's own iat claim when the bearer token happens
// to be a JWT; opaque tokens fall back to the local clock.
func issuedAt(token string, fallback time.Time) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
			return iat.Unix()
		}
	}
	return fallback.Unix()
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
