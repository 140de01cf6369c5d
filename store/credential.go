package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCredentialNotFound reports a lookup for an unknown credential.
var ErrCredentialNotFound = errors.New("store: credential not found")

// Sealer encrypts LMS passwords at rest with ChaCha20-Poly1305. The key is
// derived from the service secret via SHA-256, so one secret covers both
// API auth and credential sealing.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) *Sealer {
	key := sha256.Sum256([]byte(secret))
	return &Sealer{key: key[:]}
}

// Seal encrypts a plaintext password. The nonce is prepended to the box.
func (s *Sealer) Seal(plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a sealed password.
func (s *Sealer) Open(box []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("unseal: %w", err)
	}
	if len(box) < aead.NonceSize() {
		return "", errors.New("unseal: box too short")
	}
	nonce, ciphertext := box[:aead.NonceSize()], box[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("unseal: %w", err)
	}
	return string(plaintext), nil
}

// SaveCredential inserts or replaces a credential by label, sealing the
// password before it reaches the database.
func (s *Store) SaveCredential(ctx context.Context, sealer *Sealer, c *Credential, password string) error {
	sealed, err := sealer.Seal(password)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO credentials (id, label, username, sealed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			username=excluded.username,
			sealed=excluded.sealed,
			updated_at=excluded.updated_at`,
		c.ID, c.Label, c.Username, sealed, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCredential returns a credential's metadata by ID, without the sealed
// password.
func (s *Store) GetCredential(ctx context.Context, id string) (*Credential, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, label, username, created_at, updated_at
		FROM credentials WHERE id = ?`, id)
	var c Credential
	err := row.Scan(&c.ID, &c.Label, &c.Username, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &c, nil
}

// ListCredentials returns all stored credentials' metadata.
func (s *Store) ListCredentials(ctx context.Context) ([]*Credential, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, label, username, created_at, updated_at
		FROM credentials ORDER BY label ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Label, &c.Username, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

// OpenCredential returns the username and unsealed password for a
// credential.
func (s *Store) OpenCredential(ctx context.Context, sealer *Sealer, id string) (username, password string, err error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT username, sealed FROM credentials WHERE id = ?`, id)
	var sealed []byte
	if err := row.Scan(&username, &sealed); err != nil {
		if err == sql.ErrNoRows {
			return "", "", ErrCredentialNotFound
		}
		return "", "", fmt.Errorf("scan credential: %w", err)
	}
	password, err = sealer.Open(sealed)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// DeleteCredential removes a credential. Courses pointing at it fall back
// to anonymous scans.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	return err
}
