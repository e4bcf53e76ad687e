package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/npezzotti/go-praat/internal/types"
)

type prefsFile struct {
	AgeVerified   bool        `json:"age-verified"`
	LastChatId    int         `json:"lastChatId,omitempty"`
	ActiveSection string      `json:"activeSection,omitempty"`
	User          *types.User `json:"user,omitempty"`
}

// Prefs persists client-side preferences as a JSON file. The values are
// advisory: the cached user is a display hint, never a credential.
type Prefs struct {
	path   string
	mu     sync.Mutex
	values prefsFile
}

// LoadPrefs reads the preferences at path. A missing file yields empty
// preferences; an empty path keeps them in memory only.
func LoadPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	if err := json.Unmarshal(raw, &p.values); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", path, err)
	}

	return p, nil
}

func (p *Prefs) AgeVerified() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.AgeVerified
}

func (p *Prefs) SetAgeVerified(v bool) error {
	return p.update(func(f *prefsFile) { f.AgeVerified = v })
}

func (p *Prefs) LastChatId() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.LastChatId
}

func (p *Prefs) SetLastChatId(id int) error {
	return p.update(func(f *prefsFile) { f.LastChatId = id })
}

func (p *Prefs) ActiveSection() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values.ActiveSection
}

func (p *Prefs) SetActiveSection(section string) error {
	return p.update(func(f *prefsFile) { f.ActiveSection = section })
}

// User returns the last cached profile, if any.
func (p *Prefs) User() (types.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values.User == nil {
		return types.User{}, false
	}
	return *p.values.User, true
}

// SetUser caches user; nil removes the entry.
func (p *Prefs) SetUser(user *types.User) error {
	return p.update(func(f *prefsFile) {
		if user == nil {
			f.User = nil
			return
		}
		u := *user
		f.User = &u
	})
}

func (p *Prefs) update(fn func(f *prefsFile)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.values)
	if p.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(p.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}
