package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrInsufficientFund = errors.New("insufficient balance")
	ErrStateExists      = errors.New("protocol state already exists")
	ErrStateNotFound    = errors.New("protocol state not found")
	ErrRevisionMismatch = errors.New("protocol state revision mismatch")
	ErrJobNotFound      = errors.New("distribution job not found")
	ErrAmountTooLarge   = errors.New("amount exceeds storable range")
)

// NullTime is a nullable timestamp column.
type NullTime sql.NullTime

// Ptr returns nil for an invalid time.
func (nt NullTime) Ptr() *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimeFromUnix converts a nullable unix-seconds column.
func nullTimeFromUnix(v sql.NullInt64) NullTime {
	if !v.Valid {
		return NullTime{}
	}
	return NullTime{Time: time.Unix(v.Int64, 0).UTC(), Valid: true}
}

func unixOrNil(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.Unix()
}

// storable converts a uint64 amount to the signed integer sqlite stores.
func storable(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", ErrAmountTooLarge, amount)
	}
	return int64(amount), nil
}

// parseKey reads a base58 account column. The empty string is the zero key.
func parseKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, nil
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("stored account key %q: %w", s, err)
	}
	return key, nil
}

// keyString is the column form of key; the zero key is stored as the empty string.
func keyString(key solana.PublicKey) string {
	if key.IsZero() {
		return ""
	}
	return key.String()
}
