package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/models"
)

func InsertMovement(ctx context.Context, db DBTX, m models.LedgerMovement) error {
	amount, err := storable(m.Amount)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
	INSERT INTO ledger_movements (id, kind, asset, from_account, to_account, amount, memo, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Kind, string(m.Asset), keyString(m.From), keyString(m.To), amount, m.Memo, m.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert movement %s: %w", m.ID, err)
	}
	return nil
}

// MovementFilter narrows ListMovements. Zero fields do not filter.
type MovementFilter struct {
	Kinds []string
	To    solana.PublicKey
	Since time.Time
	Limit int
}

// ListMovements returns movements newest first.
func ListMovements(ctx context.Context, db DBTX, f MovementFilter) ([]models.LedgerMovement, error) {
	query := `SELECT id, kind, asset, from_account, to_account, amount, memo, created_at FROM ledger_movements WHERE 1 = 1`
	var args []any
	if len(f.Kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(", ?", len(f.Kinds)-1) + `)`
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}
	if !f.To.IsZero() {
		query += ` AND to_account = ?`
		args = append(args, f.To.String())
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since.Unix())
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []models.LedgerMovement
	for rows.Next() {
		var (
			m             models.LedgerMovement
			asset         string
			from, to      string
			amount, ctime int64
		)
		if err := rows.Scan(&m.ID, &m.Kind, &asset, &from, &to, &amount, &m.Memo, &ctime); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Asset = models.Asset(asset)
		m.Amount = uint64(amount)
		m.CreatedAt = time.Unix(ctime, 0).UTC()
		if m.From, err = parseKey(from); err != nil {
			return nil, err
		}
		if m.To, err = parseKey(to); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
