package client

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/npezzotti/go-praat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthContext_Verify(t *testing.T) {
	ctx := context.Background()
	_, c := newFakeServer(t)
	auth := NewAuthContext(c, nil, testutil.TestLogger(t))
	assert.Equal(t, StateUnknown, auth.State())

	require.NoError(t, auth.Verify(ctx), "expected 401 to settle as anonymous")
	assert.Equal(t, StateAnonymous, auth.State())
	_, ok := auth.User()
	assert.False(t, ok)

	_, err := c.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, auth.Verify(ctx))
	assert.Equal(t, StateAuthenticated, auth.State())
	user, ok := auth.User()
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)
}

func TestAuthContext_LoginLogout(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeServer(t)

	prefs, err := LoadPrefs(filepath.Join(t.TempDir(), "prefs.json"))
	require.NoError(t, err)
	auth := NewAuthContext(c, prefs, testutil.TestLogger(t))

	_, err = auth.Login(ctx, "alice@example.com", "nope")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.NotEqual(t, StateAuthenticated, auth.State())

	user, err := auth.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, auth.State())
	cached, ok := prefs.User()
	require.True(t, ok, "expected the profile to be cached in prefs")
	assert.Equal(t, user.Id, cached.Id)

	fake.set(func(f *fakeServer) { f.logoutStatus = http.StatusInternalServerError })
	err = auth.Logout(ctx)
	assert.Error(t, err, "expected the remote failure to be reported")
	assert.Equal(t, StateAnonymous, auth.State(), "expected local state to be cleared regardless")
	_, ok = auth.User()
	assert.False(t, ok)
	_, ok = prefs.User()
	assert.False(t, ok)
}

func TestAuthContext_Register(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeServer(t)
	auth := NewAuthContext(c, nil, testutil.TestLogger(t))

	user, err := auth.Register(ctx, RegisterParams{
		Username:  "carol",
		Email:     "carol@example.com",
		Password:  "pw",
		FirstName: "C",
		LastName:  "L",
		BirthDate: "1999-09-09",
		Gender:    "other",
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	assert.Equal(t, StateAuthenticated, auth.State())
	fake.get(func(f *fakeServer) {
		assert.True(t, f.loggedIn, "expected registration to be followed by a login")
		assert.Len(t, f.registered, 1)
	})
}

func TestAuthContext_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeServer(t)
	auth := NewAuthContext(c, nil, testutil.TestLogger(t))

	_, err := auth.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)

	bio := "hello there"
	user, err := auth.UpdateProfile(ctx, ProfileChanges{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello there", user.Bio)
	fake.get(func(f *fakeServer) {
		assert.EqualValues(t, 1, f.lastChangeSet["userId"], "expected the current user id to be filled in")
		assert.NotContains(t, f.lastChangeSet, "balance")
	})

	cached, ok := auth.User()
	require.True(t, ok)
	assert.Equal(t, "hello there", cached.Bio)
}

func TestAuthContext_Observe(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeServer(t)
	auth := NewAuthContext(c, nil, testutil.TestLogger(t))

	_, err := auth.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)

	assert.NoError(t, auth.Observe(nil))
	auth.Observe(&APIError{StatusCode: http.StatusForbidden, Message: "nope"})
	assert.Equal(t, StateAuthenticated, auth.State(), "expected 403 to keep the session")

	// the server forgets the session behind the client's back
	fake.set(func(f *fakeServer) { f.loggedIn = false })
	bio := "x"
	_, err = auth.UpdateProfile(ctx, ProfileChanges{Bio: &bio})
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, StateAnonymous, auth.State())
	_, ok := auth.User()
	assert.False(t, ok)
}

func TestAuthState_String(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "verifying", StateVerifying.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "anonymous", StateAnonymous.String())
}
