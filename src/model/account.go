package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/models"
)

const accountColumns = `account, mint, token_balance, native_balance, first_acquired_at`

func scanAccount(row interface{ Scan(...any) error }) (models.Account, error) {
	var (
		key, mint     string
		token, native int64
		acquired      sql.NullInt64
	)
	if err := row.Scan(&key, &mint, &token, &native, &acquired); err != nil {
		return models.Account{}, err
	}
	a := models.Account{Token: uint64(token), Native: uint64(native)}
	var err error
	if a.Key, err = parseKey(key); err != nil {
		return models.Account{}, err
	}
	if a.Mint, err = parseKey(mint); err != nil {
		return models.Account{}, err
	}
	a.FirstAcquiredAt = nullTimeFromUnix(acquired).Ptr()
	return a, nil
}

// EnsureAccount creates the account row if it does not exist. A known mint is recorded on
// an account that has none yet; an existing different mint is left untouched.
func EnsureAccount(ctx context.Context, db DBTX, key, mint solana.PublicKey, now time.Time) error {
	_, err := db.ExecContext(ctx, `
	INSERT INTO accounts (account, mint, created_at) VALUES (?, ?, ?)
	ON CONFLICT(account) DO UPDATE SET mint = excluded.mint WHERE accounts.mint = ''`,
		key.String(), keyString(mint), now.Unix())
	if err != nil {
		return fmt.Errorf("ensure account %s: %w", key, err)
	}
	return nil
}

// GetAccount returns ErrAccountNotFound when the account has never been created.
func GetAccount(ctx context.Context, db DBTX, key solana.PublicKey) (models.Account, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account = ?`, key.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account %s: %w", key, err)
	}
	return a, nil
}

// CreditAccount adds amount of asset to an existing account. A token credit onto an empty
// balance starts a new holding period. A credit that would carry the balance past the
// storable range fails with ErrAmountTooLarge and changes nothing.
func CreditAccount(ctx context.Context, db DBTX, key solana.PublicKey, asset models.Asset, amount uint64, now time.Time) error {
	v, err := storable(amount)
	if err != nil {
		return err
	}
	headroom := math.MaxInt64 - v
	var res sql.Result
	switch asset {
	case models.AssetToken:
		res, err = db.ExecContext(ctx, `
		UPDATE accounts SET
			first_acquired_at = CASE WHEN token_balance = 0 AND ? > 0 THEN ? ELSE first_acquired_at END,
			token_balance = token_balance + ?
		WHERE account = ? AND token_balance <= ?`, v, now.Unix(), v, key.String(), headroom)
	case models.AssetNative:
		res, err = db.ExecContext(ctx, `
		UPDATE accounts SET native_balance = native_balance + ?
		WHERE account = ? AND native_balance <= ?`, v, key.String(), headroom)
	default:
		return fmt.Errorf("credit %s: unknown asset %q", key, asset)
	}
	if err != nil {
		return fmt.Errorf("credit %s %s: %w", asset, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := GetAccount(ctx, db, key); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s cannot hold %d more %s", ErrAmountTooLarge, key, amount, asset)
}

// DebitAccount removes amount of asset from an account. It fails with ErrInsufficientFund
// and changes nothing when the balance is short. Emptying the token balance ends the
// holding period.
func DebitAccount(ctx context.Context, db DBTX, key solana.PublicKey, asset models.Asset, amount uint64) error {
	v, err := storable(amount)
	if err != nil {
		return err
	}
	var res sql.Result
	switch asset {
	case models.AssetToken:
		res, err = db.ExecContext(ctx, `
		UPDATE accounts SET
			first_acquired_at = CASE WHEN token_balance = ? THEN NULL ELSE first_acquired_at END,
			token_balance = token_balance - ?
		WHERE account = ? AND token_balance >= ?`, v, v, key.String(), v)
	case models.AssetNative:
		res, err = db.ExecContext(ctx, `
		UPDATE accounts SET native_balance = native_balance - ?
		WHERE account = ? AND native_balance >= ?`, v, key.String(), v)
	default:
		return fmt.Errorf("debit %s: unknown asset %q", key, asset)
	}
	if err != nil {
		return fmt.Errorf("debit %s %s: %w", asset, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := GetAccount(ctx, db, key); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s cannot cover %d %s", ErrInsufficientFund, key, amount, asset)
}

// CountTokenHolders counts accounts of mint holding a positive balance.
func CountTokenHolders(ctx context.Context, db DBTX, mint solana.PublicKey) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE mint = ? AND token_balance > 0`, keyString(mint)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count token holders: %w", err)
	}
	return n, nil
}
