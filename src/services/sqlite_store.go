package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/codec"
	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/model"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/processors"
)

// SQLStore binds the protocol collaborators to a sqlite database.
type SQLStore struct {
	db    *sql.DB
	clock Clock
}

func NewSQLStore(db *sql.DB, clock Clock) *SQLStore {
	return &SQLStore{db: db, clock: clock}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, s.bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.FromContext(ctx).Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repositories returns collaborators outside any transaction, for reads.
func (s *SQLStore) Repositories() Repositories {
	return s.bind(s.db)
}

func (s *SQLStore) bind(q model.DBTX) Repositories {
	return Repositories{
		Ledger:    &sqlLedger{q: q, clock: s.clock},
		Holders:   &sqlHolderRegistry{q: q},
		State:     &sqlStateStore{q: q, clock: s.clock},
		Jobs:      &sqlJobStore{q: q},
		Movements: &sqlMovementLog{q: q},
	}
}

// ledgerError translates storage failures into program errors.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, model.ErrAccountNotFound):
		return fmt.Errorf("%w: %v", processors.ErrInvalidTokenAccount, err)
	case errors.Is(err, model.ErrInsufficientFund):
		return fmt.Errorf("%w: %v", processors.ErrInsufficientTokenBalance, err)
	case errors.Is(err, model.ErrAmountTooLarge):
		return fmt.Errorf("%w: %v", processors.ErrInvalidInstruction, err)
	}
	return err
}

type sqlLedger struct {
	q     model.DBTX
	clock Clock
}

func (l *sqlLedger) Open(ctx context.Context, account, mint solana.PublicKey) error {
	return model.EnsureAccount(ctx, l.q, account, mint, l.clock.Now())
}

func (l *sqlLedger) Account(ctx context.Context, account solana.PublicKey) (models.Account, error) {
	a, err := model.GetAccount(ctx, l.q, account)
	if err != nil {
		return models.Account{}, ledgerError(err)
	}
	return a, nil
}

func (l *sqlLedger) Balance(ctx context.Context, account solana.PublicKey, asset models.Asset) (uint64, error) {
	a, err := l.Account(ctx, account)
	if err != nil {
		return 0, err
	}
	if asset == models.AssetNative {
		return a.Native, nil
	}
	return a.Token, nil
}

func (l *sqlLedger) Transfer(ctx context.Context, from, to solana.PublicKey, asset models.Asset, amount uint64) error {
	if !asset.Valid() {
		return fmt.Errorf("%w: unknown asset %q", processors.ErrInvalidInstruction, asset)
	}
	if amount == 0 {
		return nil
	}
	if _, err := l.Account(ctx, to); err != nil {
		return err
	}
	if err := model.DebitAccount(ctx, l.q, from, asset, amount); err != nil {
		return ledgerError(err)
	}
	if err := model.CreditAccount(ctx, l.q, to, asset, amount, l.clock.Now()); err != nil {
		return ledgerError(err)
	}
	return nil
}

func (l *sqlLedger) Credit(ctx context.Context, account solana.PublicKey, asset models.Asset, amount uint64) error {
	if !asset.Valid() {
		return fmt.Errorf("%w: unknown asset %q", processors.ErrInvalidInstruction, asset)
	}
	return ledgerError(model.CreditAccount(ctx, l.q, account, asset, amount, l.clock.Now()))
}

type sqlHolderRegistry struct {
	q model.DBTX
}

func (r *sqlHolderRegistry) Snapshot(ctx context.Context, jobID string) (int, error) {
	return model.SnapshotJobHolders(ctx, r.q, jobID)
}

func (r *sqlHolderRegistry) Holders(ctx context.Context, jobID string, after *solana.PublicKey, limit int) ([]models.HolderSnapshot, error) {
	cursor := ""
	if after != nil {
		cursor = after.String()
	}
	return model.ListJobHolders(ctx, r.q, jobID, cursor, limit)
}

func (r *sqlHolderRegistry) Holding(ctx context.Context, account solana.PublicKey) (models.HolderSnapshot, error) {
	a, err := model.GetAccount(ctx, r.q, account)
	if err != nil {
		return models.HolderSnapshot{}, ledgerError(err)
	}
	return a.Snapshot(), nil
}

func (r *sqlHolderRegistry) Count(ctx context.Context, mint solana.PublicKey) (int, error) {
	return model.CountTokenHolders(ctx, r.q, mint)
}

type sqlStateStore struct {
	q     model.DBTX
	clock Clock
}

func (s *sqlStateStore) Load(ctx context.Context) (*models.ProtocolState, error) {
	rec, err := model.GetState(ctx, s.q)
	if errors.Is(err, model.ErrStateNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	state, err := codec.DecodeState(rec.Data)
	if err != nil {
		return nil, err
	}
	state.Revision = rec.Revision
	return state, nil
}

// Create stores the first record at revision 1.
func (s *sqlStateStore) Create(ctx context.Context, state *models.ProtocolState) error {
	state.Revision = 1
	data, err := codec.EncodeState(state)
	if err != nil {
		return err
	}
	err = model.InsertState(ctx, s.q, data, state.Revision, s.clock.Now())
	if errors.Is(err, model.ErrStateExists) {
		return ErrAlreadyInitialized
	}
	return err
}

func (s *sqlStateStore) Save(ctx context.Context, state *models.ProtocolState, expectedRevision uint64) error {
	state.Revision = expectedRevision + 1
	data, err := codec.EncodeState(state)
	if err != nil {
		state.Revision = expectedRevision
		return err
	}
	err = model.UpdateState(ctx, s.q, data, expectedRevision, state.Revision, s.clock.Now())
	if err != nil {
		state.Revision = expectedRevision
		if errors.Is(err, model.ErrRevisionMismatch) {
			return fmt.Errorf("%w: %v", ErrStaleState, err)
		}
		return err
	}
	return nil
}

type sqlJobStore struct {
	q model.DBTX
}

// Open returns the unfinished job, or nil when there is none.
func (s *sqlJobStore) Open(ctx context.Context) (*models.DistributionJob, error) {
	job, err := model.GetOpenJob(ctx, s.q)
	if errors.Is(err, model.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *sqlJobStore) Create(ctx context.Context, job *models.DistributionJob) error {
	return model.CreateJob(ctx, s.q, *job)
}

func (s *sqlJobStore) Checkpoint(ctx context.Context, job *models.DistributionJob) error {
	return model.UpdateJob(ctx, s.q, *job)
}

func (s *sqlJobStore) List(ctx context.Context, limit int) ([]models.DistributionJob, error) {
	return model.ListJobs(ctx, s.q, limit)
}

type sqlMovementLog struct {
	q model.DBTX
}

func (m *sqlMovementLog) Record(ctx context.Context, movements ...models.LedgerMovement) error {
	for _, mv := range movements {
		if err := model.InsertMovement(ctx, m.q, mv); err != nil {
			return err
		}
	}
	return nil
}

func (m *sqlMovementLog) Received(ctx context.Context, account solana.PublicKey, kind string, limit int) ([]models.LedgerMovement, error) {
	return model.ListMovements(ctx, m.q, model.MovementFilter{Kinds: []string{kind}, To: account, Limit: limit})
}

func (m *sqlMovementLog) Taxes(ctx context.Context, since time.Time) ([]models.LedgerMovement, error) {
	return model.ListMovements(ctx, m.q, model.MovementFilter{
		Kinds: []string{models.KindLPTax, models.KindDividendTax, models.KindBuyback},
		Since: since,
	})
}
