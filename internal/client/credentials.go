package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// sessionTTL is the durability horizon for persisted credentials.
const sessionTTL = 7 * 24 * time.Hour

// Session is the authenticated identity of this client. A session is
// authenticated exactly when it carries a token.
type Session struct {
	UserID int64
	Name   string
	Email  string
	Token  string
	// ExpiresAt bounds how long the persisted session survives reloads.
	ExpiresAt time.Time
}

// Authenticated is a pure derivation from token presence; there is no
// separately maintained flag to drift out of sync.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// CredentialStore persists a session across process restarts as two records
// under one directory: the bearer token and a token-stripped profile. Files
// are written 0600; both carry the 7-day expiry horizon.
type CredentialStore struct {
	dir string
}

func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{dir: dir}
}

const (
	tokenFile   = "token.json"
	profileFile = "profile.json"
)

type tokenRecord struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type profileRecord struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Save persists the session, stamping both records with a fresh expiry.
// The profile record never duplicates the token.
func (s *CredentialStore) Save(sess Session) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	expiresAt := sess.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(sessionTTL)
	}

	if err := s.writeRecord(tokenFile, tokenRecord{Token: sess.Token, ExpiresAt: expiresAt}); err != nil {
		return err
	}
	return s.writeRecord(profileFile, profileRecord{
		UserID:    sess.UserID,
		Name:      sess.Name,
		Email:     sess.Email,
		ExpiresAt: expiresAt,
	})
}

// SaveToken persists only the token record. Used mid-login, before the
// profile is known; Load treats the resulting state as absent until Save
// completes it.
func (s *CredentialStore) SaveToken(token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	expiresAt := time.Now().UTC().Add(sessionTTL)
	return s.writeRecord(tokenFile, tokenRecord{Token: token, ExpiresAt: expiresAt})
}

func (s *CredentialStore) writeRecord(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Load returns the persisted session, or nil when either record is absent,
// unparsable, or expired. Partial state is treated as absent.
func (s *CredentialStore) Load() *Session {
	var tok tokenRecord
	if !s.readRecord(tokenFile, &tok) || tok.Token == "" || expired(tok.ExpiresAt) {
		return nil
	}

	var prof profileRecord
	if !s.readRecord(profileFile, &prof) || expired(prof.ExpiresAt) {
		return nil
	}

	return &Session{
		UserID:    prof.UserID,
		Name:      prof.Name,
		Email:     prof.Email,
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
	}
}

func (s *CredentialStore) readRecord(name string, v any) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func expired(t time.Time) bool {
	return !t.After(time.Now())
}

// Clear removes both records. Clearing an empty store is not an error.
func (s *CredentialStore) Clear() error {
	for _, name := range []string{tokenFile, profileFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Token implements TokenSource. It reads only the token record, so requests
// issued mid-login (token saved, profile pending) still authenticate.
func (s *CredentialStore) Token() string {
	var tok tokenRecord
	if !s.readRecord(tokenFile, &tok) || expired(tok.ExpiresAt) {
		return ""
	}
	return tok.Token
}
