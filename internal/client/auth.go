package client

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/npezzotti/go-praat/internal/types"
)

type AuthState int

const (
	StateUnknown AuthState = iota
	StateVerifying
	StateAuthenticated
	StateAnonymous
)

func (s AuthState) String() string {
	switch s {
	case StateVerifying:
		return "verifying"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// AuthContext tracks who the client is logged in as. It is the only writer
// of the cached profile.
type AuthContext struct {
	api   *Client
	prefs *Prefs
	log   *log.Logger

	mu    sync.RWMutex
	state AuthState
	user  *types.User
}

// NewAuthContext returns a context in the unknown state. prefs may be nil.
func NewAuthContext(api *Client, prefs *Prefs, logger *log.Logger) *AuthContext {
	return &AuthContext{
		api:   api,
		prefs: prefs,
		log:   logger,
	}
}

func (a *AuthContext) State() AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// User returns the cached profile when authenticated.
func (a *AuthContext) User() (types.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return types.User{}, false
	}
	return *a.user, true
}

func (a *AuthContext) setUser(user *types.User) {
	a.mu.Lock()
	a.user = user
	if user != nil {
		a.state = StateAuthenticated
	} else {
		a.state = StateAnonymous
	}
	a.mu.Unlock()

	if a.prefs != nil {
		if err := a.prefs.SetUser(user); err != nil {
			a.log.Printf("save cached user: %v", err)
		}
	}
}

// Verify asks the server whether the session cookie is still good. A 401
// or 404 settles the context as anonymous without error.
func (a *AuthContext) Verify(ctx context.Context) error {
	a.mu.Lock()
	a.state = StateVerifying
	a.mu.Unlock()

	user, err := a.api.VerifySession(ctx)
	if err != nil {
		a.setUser(nil)
		if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusNotFound) {
			return nil
		}
		return err
	}

	a.setUser(&user)
	return nil
}

func (a *AuthContext) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := a.api.Login(ctx, email, password)
	if err != nil {
		return types.User{}, a.Observe(err)
	}

	a.setUser(&user)
	return user, nil
}

// Register creates the account and then logs in with the same credentials,
// since registration alone does not open a session.
func (a *AuthContext) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	if _, err := a.api.Register(ctx, params); err != nil {
		return types.User{}, err
	}

	return a.Login(ctx, params.Email, params.Password)
}

// Logout clears local state first and then tells the server. The returned
// error only reports the remote call.
func (a *AuthContext) Logout(ctx context.Context) error {
	a.setUser(nil)
	return a.api.Logout(ctx)
}

func (a *AuthContext) UpdateProfile(ctx context.Context, changes ProfileChanges) (types.User, error) {
	if changes.UserId == 0 {
		if current, ok := a.User(); ok {
			changes.UserId = current.Id
		}
	}

	user, err := a.api.UpdateProfile(ctx, changes)
	if err != nil {
		return types.User{}, a.Observe(err)
	}

	if current, ok := a.User(); ok && current.Id == user.Id {
		a.setUser(&user)
	}
	return user, nil
}

// Observe drops the cached profile when err says the session is gone. It
// returns err unchanged.
func (a *AuthContext) Observe(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		a.mu.RLock()
		authenticated := a.state == StateAuthenticated
		a.mu.RUnlock()

		if authenticated {
			a.log.Printf("session expired: %v", err)
			a.setUser(nil)
		}
	}

	return err
}
