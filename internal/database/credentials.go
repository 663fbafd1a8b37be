package database

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/omriShneor/project_concierge/internal/token"
)

// getEncryptionKey derives a 32-byte key for AES-256 encryption
func (d *DB) getEncryptionKey() ([]byte, error) {
	if d.encryptionKey == "" {
		return nil, fmt.Errorf("no encryption key available: set CONCIERGE_ENCRYPTION_KEY or ANTHROPIC_API_KEY")
	}
	hash := sha256.Sum256([]byte(d.encryptionKey))
	return hash[:], nil
}

// encryptToken encrypts an OAuth token for storage
func (d *DB) encryptToken(plain string) ([]byte, error) {
	key, err := d.getEncryptionKey()
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(plain), nil), nil
}

// decryptToken decrypts an OAuth token from storage
func (d *DB) decryptToken(ciphertext []byte) (string, error) {
	key, err := d.getEncryptionKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// LoadCredential returns the stored calendar credential, or nil when none is stored
func (d *DB) LoadCredential(ctx context.Context) (*token.Credential, error) {
	var accessEnc, refreshEnc []byte
	var expiry sql.NullString

	err := d.QueryRowContext(ctx, `
		SELECT access_token_encrypted, refresh_token_encrypted, expiry
		FROM calendar_credentials WHERE id = 1
	`).Scan(&accessEnc, &refreshEnc, &expiry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar credential: %w", err)
	}

	c := &token.Credential{}
	if len(accessEnc) > 0 {
		if c.AccessToken, err = d.decryptToken(accessEnc); err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
	}
	if c.RefreshToken, err = d.decryptToken(refreshEnc); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if expiry.Valid && expiry.String != "" {
		if c.Expiry, err = parseTime(expiry.String); err != nil {
			return nil, fmt.Errorf("failed to parse credential expiry: %w", err)
		}
	}

	return c, nil
}

// SaveCredential stores the calendar credential (upsert)
func (d *DB) SaveCredential(ctx context.Context, c *token.Credential) error {
	var accessEnc []byte
	if c.AccessToken != "" {
		var err error
		if accessEnc, err = d.encryptToken(c.AccessToken); err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
	}

	refreshEnc, err := d.encryptToken(c.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	var expiry *string
	if !c.Expiry.IsZero() {
		s := formatTime(c.Expiry)
		expiry = &s
	}

	_, err = d.ExecContext(ctx, `
		INSERT INTO calendar_credentials (id, access_token_encrypted, refresh_token_encrypted, expiry, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			expiry = excluded.expiry,
			updated_at = CURRENT_TIMESTAMP
	`, accessEnc, refreshEnc, expiry)
	if err != nil {
		return fmt.Errorf("failed to save calendar credential: %w", err)
	}

	return nil
}

// Fixed-width so that text ordering matches chronological ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
