// Package apikey manages gateway API keys in PostgreSQL. Each key carries a
// library role, which decides the classifications its caller may read and
// the operations it may perform. Only SHA-256 hashes of keys are stored.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
)

var (
	ErrInvalidKey  = errors.New("invalid api key")
	ErrExpiredKey  = errors.New("api key expired")
	ErrUnknownRole = errors.New("unknown role")
)

// KeyInfo is a stored key without its hash.
type KeyInfo struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      access.Role `json:"role"`
	RateLimit int         `json:"rate_limit"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// NewKey describes a key to create.
type NewKey struct {
	Name      string
	Role      access.Role
	RateLimit int
	ExpiresAt *time.Time
}

type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

const keyColumns = `id, name, role, rate_limit, is_active, created_at, expires_at`

// Validate resolves a raw key to its KeyInfo. Unknown or revoked keys yield
// ErrInvalidKey; expired keys ErrExpiredKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	row := v.db.DB.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	)
	info, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if info.ExpiresAt != nil && info.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// CreateKey stores a new key and returns the raw key, which cannot be
// recovered later.
func (v *Validator) CreateKey(ctx context.Context, k NewKey) (string, *KeyInfo, error) {
	k.Name = strings.TrimSpace(k.Name)
	if k.Name == "" {
		return "", nil, errors.New("key name is required")
	}
	if !k.Role.Known() {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownRole, k.Role)
	}
	if k.RateLimit <= 0 {
		k.RateLimit = 100
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}

	var expiry sql.NullTime
	if k.ExpiresAt != nil {
		expiry = sql.NullTime{Time: *k.ExpiresAt, Valid: true}
	}
	row := v.db.DB.QueryRowContext(ctx,
		`INSERT INTO api_keys (key_hash, name, role, rate_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+keyColumns,
		HashKey(rawKey), k.Name, string(k.Role), k.RateLimit, expiry,
	)
	info, err := scanKey(row)
	if err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}
	v.logger.Info("api key created", "id", info.ID, "name", info.Name, "role", info.Role, "rate_limit", info.RateLimit)
	return rawKey, info, nil
}

// RevokeKey deactivates the key with the given raw value.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	return v.revoke(ctx, `UPDATE api_keys SET is_active = false WHERE key_hash = $1 AND is_active = true`, HashKey(rawKey))
}

// RevokeByID deactivates a key by its id, for administrators who never saw
// the raw key.
func (v *Validator) RevokeByID(ctx context.Context, id string) error {
	return v.revoke(ctx, `UPDATE api_keys SET is_active = false WHERE id::text = $1 AND is_active = true`, id)
}

func (v *Validator) revoke(ctx context.Context, query, arg string) error {
	result, err := v.db.DB.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]KeyInfo, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner) (*KeyInfo, error) {
	var (
		k         KeyInfo
		role      string
		expiresAt sql.NullTime
	)
	if err := s.Scan(&k.ID, &k.Name, &role, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	k.Role = access.ParseRole(role)
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	return &k, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "dl_" + hex.EncodeToString(b), nil
}
