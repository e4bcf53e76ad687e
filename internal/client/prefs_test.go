package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/npezzotti/go-praat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	prefs, err := LoadPrefs(path)
	require.NoError(t, err, "expected a missing file to be fine")
	assert.False(t, prefs.AgeVerified())

	require.NoError(t, prefs.SetAgeVerified(true))
	require.NoError(t, prefs.SetLastChatId(4))
	require.NoError(t, prefs.SetActiveSection("chat"))
	require.NoError(t, prefs.SetUser(&types.User{Id: 1, Username: "alice"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"age-verified": true,
		"lastChatId": 4,
		"activeSection": "chat",
		"user": {
			"id": 1, "username": "alice", "email": "", "firstName": "", "lastName": "",
			"birthDate": "", "gender": "", "profilePicture": "", "bannerImage": "", "bio": "",
			"balance": 0, "role": "", "isCreator": false, "isAdmin": false, "isVerified": false,
			"lastLogin": null, "createdAt": "0001-01-01T00:00:00Z"
		}
	}`, string(raw))

	reloaded, err := LoadPrefs(path)
	require.NoError(t, err)
	assert.True(t, reloaded.AgeVerified())
	assert.Equal(t, 4, reloaded.LastChatId())
	assert.Equal(t, "chat", reloaded.ActiveSection())
	user, ok := reloaded.User()
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)

	require.NoError(t, reloaded.SetUser(nil))
	_, ok = reloaded.User()
	assert.False(t, ok)
}

func TestPrefs_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := LoadPrefs(path)
	assert.Error(t, err)
}

func TestPrefs_InMemory(t *testing.T) {
	prefs, err := LoadPrefs("")
	require.NoError(t, err)
	require.NoError(t, prefs.SetLastChatId(2))
	assert.Equal(t, 2, prefs.LastChatId())
}
