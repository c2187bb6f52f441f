package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/soldrip/backend/src/models"
)

const jobColumns = `id, status, pool_balance, distributable, cursor, total_paid, recipients, skipped, batches, started_at, completed_at`

func scanJob(row interface{ Scan(...any) error }) (models.DistributionJob, error) {
	var (
		j                                models.DistributionJob
		status, cursor                   string
		pool, distributable, paid, start int64
		completed                        sql.NullInt64
	)
	err := row.Scan(&j.ID, &status, &pool, &distributable, &cursor, &paid, &j.Recipients, &j.Skipped, &j.Batches, &start, &completed)
	if err != nil {
		return models.DistributionJob{}, err
	}
	j.Status = models.JobStatus(status)
	j.PoolBalance = uint64(pool)
	j.Distributable = uint64(distributable)
	j.TotalPaid = uint64(paid)
	j.StartedAt = time.Unix(start, 0).UTC()
	j.CompletedAt = nullTimeFromUnix(completed).Ptr()
	if cursor != "" {
		if j.Cursor, err = parseKey(cursor); err != nil {
			return models.DistributionJob{}, err
		}
		j.HasCursor = true
	}
	return j, nil
}

func CreateJob(ctx context.Context, db DBTX, j models.DistributionJob) error {
	pool, err := storable(j.PoolBalance)
	if err != nil {
		return err
	}
	distributable, err := storable(j.Distributable)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
	INSERT INTO distribution_jobs (id, status, pool_balance, distributable, started_at)
	VALUES (?, ?, ?, ?, ?)`, j.ID, string(j.Status), pool, distributable, j.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("create distribution job: %w", err)
	}
	return nil
}

// UpdateJob checkpoints a job's progress.
func UpdateJob(ctx context.Context, db DBTX, j models.DistributionJob) error {
	paid, err := storable(j.TotalPaid)
	if err != nil {
		return err
	}
	cursor := ""
	if j.HasCursor {
		cursor = j.Cursor.String()
	}
	res, err := db.ExecContext(ctx, `
	UPDATE distribution_jobs SET status = ?, cursor = ?, total_paid = ?, recipients = ?, skipped = ?, batches = ?, completed_at = ?
	WHERE id = ?`,
		string(j.Status), cursor, paid, j.Recipients, j.Skipped, j.Batches, unixOrNil(j.CompletedAt), j.ID)
	if err != nil {
		return fmt.Errorf("update distribution job %s: %w", j.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, j.ID)
	}
	return nil
}

// GetOpenJob returns the unfinished job, or ErrJobNotFound.
func GetOpenJob(ctx context.Context, db DBTX) (models.DistributionJob, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM distribution_jobs WHERE status = ? ORDER BY started_at DESC LIMIT 1`, string(models.JobOpen))
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DistributionJob{}, ErrJobNotFound
	}
	if err != nil {
		return models.DistributionJob{}, fmt.Errorf("get open distribution job: %w", err)
	}
	return j, nil
}

func GetJob(ctx context.Context, db DBTX, id string) (models.DistributionJob, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM distribution_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DistributionJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return models.DistributionJob{}, fmt.Errorf("get distribution job %s: %w", id, err)
	}
	return j, nil
}

// ListJobs returns jobs newest first.
func ListJobs(ctx context.Context, db DBTX, limit int) ([]models.DistributionJob, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+jobColumns+` FROM distribution_jobs ORDER BY started_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list distribution jobs: %w", err)
	}
	defer rows.Close()

	var out []models.DistributionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SnapshotJobHolders freezes every positive token balance for a job and returns how many
// holders were captured.
func SnapshotJobHolders(ctx context.Context, db DBTX, jobID string) (int, error) {
	res, err := db.ExecContext(ctx, `
	INSERT INTO distribution_job_holders (job_id, account, mint, token_balance, first_acquired_at)
	SELECT ?, account, mint, token_balance, first_acquired_at FROM accounts
	WHERE token_balance > 0`, jobID)
	if err != nil {
		return 0, fmt.Errorf("snapshot holders for job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListJobHolders pages through a job's frozen holders in ascending account order,
// starting strictly after the given account when after is non-empty.
func ListJobHolders(ctx context.Context, db DBTX, jobID, after string, limit int) ([]models.HolderSnapshot, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT account, mint, token_balance, first_acquired_at FROM distribution_job_holders
	WHERE job_id = ? AND account > ?
	ORDER BY account ASC
	LIMIT ?`, jobID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list holders of job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []models.HolderSnapshot
	for rows.Next() {
		var (
			key, mint string
			balance   int64
			acquired  sql.NullInt64
		)
		if err := rows.Scan(&key, &mint, &balance, &acquired); err != nil {
			return nil, err
		}
		h := models.HolderSnapshot{Balance: uint64(balance)}
		if h.Account, err = parseKey(key); err != nil {
			return nil, err
		}
		if h.Mint, err = parseKey(mint); err != nil {
			return nil, err
		}
		if t := nullTimeFromUnix(acquired).Ptr(); t != nil {
			h.HoldingStartTime = *t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
