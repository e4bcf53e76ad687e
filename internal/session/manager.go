package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultCookieName = "praat_session"

// ErrNoSession is returned when the request carries no usable session
// cookie.
var ErrNoSession = errors.New("no session cookie")

type Options struct {
	CookieName string
	Domain     string
	Secure     bool
	TTL        time.Duration
}

// Manager ties a Store to the session cookie. The cookie value is an
// HS256 token whose jti claim is the session id.
type Manager struct {
	store      Store
	signingKey []byte
	opts       Options
	now        func() time.Time
}

func NewManager(store Store, signingKey []byte, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}

	return &Manager{
		store:      store,
		signingKey: signingKey,
		opts:       opts,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.opts.CookieName
}

// Create stores data under a fresh session id and returns the id.
func (m *Manager) Create(ctx context.Context, data Data) (string, error) {
	id := uuid.NewString()
	if data.CreatedAt.IsZero() {
		data.CreatedAt = m.now().UTC()
	}

	if err := m.store.Put(ctx, id, data); err != nil {
		return "", fmt.Errorf("put session: %w", err)
	}

	return id, nil
}

// Rotate replaces the session named oldId, if any, with a new one holding
// data and points the response cookie at it.
func (m *Manager) Rotate(ctx context.Context, w http.ResponseWriter, oldId string, data Data) (string, error) {
	if oldId != "" {
		if err := m.store.Delete(ctx, oldId); err != nil {
			return "", fmt.Errorf("delete old session: %w", err)
		}
	}

	id, err := m.Create(ctx, data)
	if err != nil {
		return "", err
	}

	if err := m.SetCookie(w, id); err != nil {
		return "", err
	}

	return id, nil
}

// SessionId extracts and verifies the session id carried by r.
func (m *Manager) SessionId(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}

	id, err := m.verifyToken(cookie.Value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	return id, nil
}

// Load returns the session id and data for r. It returns ErrNoSession
// when there is no valid cookie and ErrNotFound when the store does not
// know the id.
func (m *Manager) Load(ctx context.Context, r *http.Request) (string, Data, error) {
	id, err := m.SessionId(r)
	if err != nil {
		return "", Data{}, err
	}

	data, err := m.store.Get(ctx, id)
	if err != nil {
		return id, Data{}, err
	}

	return id, data, nil
}

func (m *Manager) Save(ctx context.Context, id string, data Data) error {
	return m.store.Put(ctx, id, data)
}

// Refresh stores data under id and re-issues the cookie so that both the
// store entry and the token expire TTL from now.
func (m *Manager) Refresh(ctx context.Context, w http.ResponseWriter, id string, data Data) error {
	if err := m.Save(ctx, id, data); err != nil {
		return err
	}

	return m.SetCookie(w, id)
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}

func (m *Manager) SetCookie(w http.ResponseWriter, id string) error {
	token, err := m.signToken(id, m.opts.TTL)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, m.cookie(token, m.now().Add(m.opts.TTL), int(m.opts.TTL.Seconds())))
	return nil
}

// ClearCookie instructs the browser to drop the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", time.Unix(0, 0), -1))
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if m.opts.Secure {
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.opts.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

func (m *Manager) signToken(id string, exp time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
	})

	return token.SignedString(m.signingKey)
}

func (m *Manager) verifyToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	if claims.ID == "" {
		return "", fmt.Errorf("missing session id claim")
	}

	return claims.ID, nil
}
