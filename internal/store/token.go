package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jfelder/stockroom/internal/model"
)

// tokenTTL matches the client-side cookie horizon.
const tokenTTL = 7 * 24 * time.Hour

type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func scanToken(scanner interface{ Scan(...any) error }) (*model.APIToken, error) {
	var t model.APIToken
	err := scanner.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const tokenCols = `id, token, user_id, expires_at, created_at`

// Create issues a new bearer token with a crypto-random value and 7-day expiry.
func (s *TokenStore) Create(userID int64) (*model.APIToken, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(tokenTTL)

	result, err := s.db.Exec(
		`INSERT INTO api_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+tokenCols+` FROM api_tokens WHERE id = ?`, id)
	return scanToken(row)
}

// GetByToken returns the token record for the given value, or nil if expired
// or not found.
func (s *TokenStore) GetByToken(token string) (*model.APIToken, error) {
	row := s.db.QueryRow(
		`SELECT `+tokenCols+` FROM api_tokens WHERE token = ? AND expires_at > datetime('now')`,
		token,
	)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func (s *TokenStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *TokenStore) DeleteByUserID(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM api_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete tokens by user: %w", err)
	}
	return nil
}

func (s *TokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM api_tokens WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
