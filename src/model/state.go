package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StateRecord is the raw persisted protocol state.
type StateRecord struct {
	Data      []byte
	Revision  uint64
	UpdatedAt time.Time
}

func GetState(ctx context.Context, db DBTX) (StateRecord, error) {
	var (
		rec      StateRecord
		rev, upd int64
	)
	err := db.QueryRowContext(ctx, `SELECT data, revision, updated_at FROM protocol_state WHERE id = 1`).Scan(&rec.Data, &rev, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, ErrStateNotFound
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("load protocol state: %w", err)
	}
	rec.Revision = uint64(rev)
	rec.UpdatedAt = time.Unix(upd, 0).UTC()
	return rec, nil
}

// InsertState writes the first record. It fails with ErrStateExists when one is present.
func InsertState(ctx context.Context, db DBTX, data []byte, revision uint64, now time.Time) error {
	rev, err := storable(revision)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
	INSERT INTO protocol_state (id, data, revision, updated_at) VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`, data, rev, now.Unix())
	if err != nil {
		return fmt.Errorf("insert protocol state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateExists
	}
	return nil
}

// UpdateState replaces the record only if it is still at expectedRevision.
func UpdateState(ctx context.Context, db DBTX, data []byte, expectedRevision, newRevision uint64, now time.Time) error {
	expected, err := storable(expectedRevision)
	if err != nil {
		return err
	}
	next, err := storable(newRevision)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
	UPDATE protocol_state SET data = ?, revision = ?, updated_at = ?
	WHERE id = 1 AND revision = ?`, data, next, now.Unix(), expected)
	if err != nil {
		return fmt.Errorf("update protocol state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: expected revision %d", ErrRevisionMismatch, expectedRevision)
	}
	return nil
}
