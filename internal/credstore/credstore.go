// Package credstore holds the authenticated user's access token and profile
// record. The pair is set and cleared together; callers never observe a token
// without its profile or the other way around.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Credential is the persisted pair: an opaque bearer token and the most
// recently fetched user record, kept as raw JSON so this package stays
// agnostic of the profile shape.
type Credential struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Store is the credential holder injected into the request layer. The request
// executor clears it on any 401 response, so implementations must tolerate
// writes from deep inside a request call chain.
type Store interface {
	// Set stores the token/user pair atomically, replacing any previous pair.
	Set(token string, user json.RawMessage) error
	// Get returns the current pair, or ok=false when no credential is held.
	Get() (Credential, bool)
	// Clear removes the pair. Clearing an empty store is a no-op.
	Clear() error
}

// Memory is an in-process Store with no persistence, used by tests and by the
// devserver-backed integration paths.
type Memory struct {
	mu   sync.Mutex
	cred *Credential
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Set(token string, user json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &Credential{Token: token, User: user}
	return nil
}

func (m *Memory) Get() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return Credential{}, false
	}
	return *m.cred, true
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

const credentialsFile = "credentials.json"

// File persists the pair as JSON under the data directory, readable across
// process restarts. The on-disk keys ("token", "user") are fixed; other tools
// may read them.
type File struct {
	mu   sync.Mutex
	path string
	cred *Credential
}

// OpenFile loads any previously stored credential from dataDir. A missing
// file is not an error; the store simply starts empty.
func OpenFile(dataDir string) (*File, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	f := &File{path: filepath.Join(dataDir, credentialsFile)}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		// A corrupt file is treated as absent rather than fatal; the user
		// re-authenticates and the next Set overwrites it.
		return f, nil
	}
	if cred.Token != "" {
		f.cred = &cred
	}
	return f, nil
}

func (f *File) Set(token string, user json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cred := Credential{Token: token, User: user}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	f.cred = &cred
	return nil
}

func (f *File) Get() (Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred == nil {
		return Credential{}, false
	}
	return *f.cred, true
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = nil
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}
