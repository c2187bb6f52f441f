// backend/src/services/protocol_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/processors"
)

const (
	DefaultBatchSize       = 100
	DefaultCacheExpiration = 30 * time.Second
	recentDividendsLimit   = 10

	ckStats      = "stats"
	ckTaxDetails = "taxes_%s"
)

// ProtocolOptions are the deployment settings of a protocol instance.
type ProtocolOptions struct {
	// Authority, when set, is the only account allowed to initialize.
	Authority solana.PublicKey
	// BuybackEscrow is used when an initialize request names none.
	BuybackEscrow solana.PublicKey
	BatchSize     int
}

type protocolServiceImpl struct {
	mu sync.Mutex // one operation at a time per protocol instance

	uow                  UnitOfWork
	verifier             SignerVerifier
	clock                Clock
	feed                 VolatilityFeed
	marketMaker          MarketMaker
	taxProcessor         processors.TaxProcessor
	guard                *processors.SlippageGuard
	dividendProcessor    processors.DividendProcessor
	transactionProcessor *processors.TransactionProcessor
	feeProcessor         processors.FeeProcessor
	statsCache           *cache.Cache
	opts                 ProtocolOptions
}

func NewProtocolService(
	uow UnitOfWork,
	verifier SignerVerifier,
	clock Clock,
	feed VolatilityFeed,
	marketMaker MarketMaker,
	taxProcessor processors.TaxProcessor,
	guard *processors.SlippageGuard,
	dividendProcessor processors.DividendProcessor,
	transactionProcessor *processors.TransactionProcessor,
	feeProcessor processors.FeeProcessor,
	statsCache *cache.Cache,
	opts ProtocolOptions,
) ProtocolService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &protocolServiceImpl{
		uow:                  uow,
		verifier:             verifier,
		clock:                clock,
		feed:                 feed,
		marketMaker:          marketMaker,
		taxProcessor:         taxProcessor,
		guard:                guard,
		dividendProcessor:    dividendProcessor,
		transactionProcessor: transactionProcessor,
		feeProcessor:         feeProcessor,
		statsCache:           statsCache,
		opts:                 opts,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", processors.ErrInvalidInstruction, fmt.Sprintf(format, args...))
}

func (s *protocolServiceImpl) Initialize(ctx context.Context, req InitializeRequest) (*models.ProtocolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logger.FromContext(ctx)

	if err := s.verifier.Verify(req.Token, req.Authority); err != nil {
		return nil, err
	}
	if !s.opts.Authority.IsZero() && !req.Authority.Equals(s.opts.Authority) {
		return nil, fmt.Errorf("%w: %s is not the protocol authority", processors.ErrMissingRequiredSignature, req.Authority)
	}
	if req.BuybackEscrow.IsZero() {
		req.BuybackEscrow = s.opts.BuybackEscrow
	}
	if req.TotalSupply == 0 {
		return nil, invalid("total supply must be positive")
	}
	keys := []solana.PublicKey{req.Authority, req.Mint, req.DividendPool, req.LPPool, req.BuybackEscrow}
	for i, k := range keys {
		if k.IsZero() {
			return nil, invalid("initialize requires authority, mint, dividend pool, LP pool and buyback escrow")
		}
		for _, other := range keys[:i] {
			if k.Equals(other) {
				return nil, invalid("account %s is used for more than one role", k)
			}
		}
	}

	now := s.clock.Now()
	state := &models.ProtocolState{
		Mint:          req.Mint,
		DividendPool:  req.DividendPool,
		LPPool:        req.LPPool,
		BuybackEscrow: req.BuybackEscrow,
		TotalSupply:   req.TotalSupply,
		Authority:     req.Authority,
	}

	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.State.Load(ctx); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		for _, k := range []solana.PublicKey{req.Authority, req.DividendPool, req.LPPool, req.BuybackEscrow} {
			if err := repos.Ledger.Open(ctx, k, req.Mint); err != nil {
				return err
			}
		}
		if err := repos.Ledger.Credit(ctx, req.Authority, models.AssetToken, req.TotalSupply); err != nil {
			return err
		}
		mint := s.transactionProcessor.CreditMovement("init/"+req.Mint.String(), req.Authority, models.AssetToken, req.TotalSupply, now)
		if err := repos.Movements.Record(ctx, mint); err != nil {
			return err
		}
		return repos.State.Create(ctx, state)
	})
	if err != nil {
		log.Warn("Initialize rejected", "mint", req.Mint.String(), "error", err)
		return nil, err
	}

	s.InvalidateCache()
	log.Info("Protocol initialized", "mint", state.Mint.String(), "totalSupply", state.TotalSupply,
		"authority", state.Authority.String(), "revision", state.Revision)
	return state, nil
}

func (s *protocolServiceImpl) TransferWithTax(ctx context.Context, req TransferRequest) (*models.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logger.FromContext(ctx)

	if err := s.verifier.Verify(req.Token, req.Source); err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		return nil, invalid("amount must be positive")
	}
	if req.Destination.IsZero() || req.Source.Equals(req.Destination) {
		return nil, invalid("destination must be a different account")
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	now := s.clock.Now()
	var result *models.TransferResult

	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		state, err := repos.State.Load(ctx)
		if err != nil {
			return err
		}
		expected := state.Revision

		if err := s.guard.CheckCooldown(state, now); err != nil {
			return err
		}

		src, err := s.tokenAccount(ctx, repos.Ledger, state, req.Source)
		if err != nil {
			return err
		}
		dst, err := s.tokenAccount(ctx, repos.Ledger, state, req.Destination)
		if err != nil {
			return err
		}
		if src.Token < req.Amount {
			return fmt.Errorf("%w: %s holds %d, transfer needs %d", processors.ErrInsufficientTokenBalance, req.Source, src.Token, req.Amount)
		}

		breakdown, err := s.taxProcessor.Compute(req.Amount, state.TotalSupply, dst.Token)
		if err != nil {
			return err
		}

		fluctuation, err := s.feed.FluctuationBps(ctx, state)
		if err != nil {
			return fmt.Errorf("read volatility feed: %w", err)
		}
		buyback := s.guard.Evaluate(state, fluctuation, now)
		routing := s.taxProcessor.Route(breakdown, buyback)

		movements := s.transactionProcessor.Process(processors.TransferRequest{
			RequestID:   req.RequestID,
			Source:      req.Source,
			Destination: req.Destination,
			Memo:        req.Memo,
			Time:        now,
		}, state, breakdown, routing)

		for _, m := range movements {
			if m.Kind == models.KindBuyback {
				err = s.marketMaker.Buyback(ctx, repos.Ledger, BuybackOrder{
					RequestID: req.RequestID,
					From:      m.From,
					Escrow:    m.To,
					Amount:    m.Amount,
				})
			} else {
				err = repos.Ledger.Transfer(ctx, m.From, m.To, m.Asset, m.Amount)
			}
			if err != nil {
				return err
			}
		}
		if err := repos.Movements.Record(ctx, movements...); err != nil {
			return err
		}
		if err := repos.State.Save(ctx, state, expected); err != nil {
			return err
		}

		result = &models.TransferResult{
			Breakdown: breakdown,
			Routing:   routing,
			Movements: movements,
			Guard:     state.Guard(),
			Revision:  state.Revision,
		}
		return nil
	})
	if err != nil {
		log.Warn("Transfer rejected", "source", req.Source.String(), "destination", req.Destination.String(),
			"amount", req.Amount, "error", err)
		return nil, err
	}

	s.InvalidateCache()
	log.Info("Transfer executed", "requestID", req.RequestID, "source", req.Source.String(),
		"destination", req.Destination.String(), "amount", req.Amount, "totalTax", result.Breakdown.TotalTax,
		"route", string(result.Routing.Mode), "guard", string(result.Guard), "revision", result.Revision)
	return result, nil
}

// tokenAccount loads an account and checks that it belongs to the protocol mint.
func (s *protocolServiceImpl) tokenAccount(ctx context.Context, ledger Ledger, state *models.ProtocolState, key solana.PublicKey) (models.Account, error) {
	acc, err := ledger.Account(ctx, key)
	if err != nil {
		return models.Account{}, err
	}
	if !acc.Mint.Equals(state.Mint) {
		return models.Account{}, fmt.Errorf("%w: %s is not an account of mint %s", processors.ErrInvalidTokenAccount, key, state.Mint)
	}
	return acc, nil
}

func (s *protocolServiceImpl) DistributeDividends(ctx context.Context, req DistributeRequest) (*models.DistributionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logger.FromContext(ctx)

	if err := s.verifier.Verify(req.Token, req.Distributor); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	summary := &models.DistributionSummary{}
	first := true

	for !summary.Completed {
		err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
			return s.distributeBatch(ctx, repos, now, first, summary)
		})
		if err != nil {
			if summary.Job.ID != "" && summary.Job.Batches > 0 {
				log.Error("Distribution batch failed, job can be resumed", "jobID", summary.Job.ID,
					"batches", summary.Job.Batches, "error", err)
			} else {
				log.Warn("Distribution rejected", "distributor", req.Distributor.String(), "error", err)
			}
			return nil, err
		}
		first = false
	}

	s.InvalidateCache()
	log.Info("Distribution completed", "jobID", summary.Job.ID, "resumed", summary.Resumed,
		"totalPaid", summary.Job.TotalPaid, "recipients", summary.Job.Recipients,
		"skipped", summary.Job.Skipped, "batches", summary.Job.Batches, "revision", summary.Revision)
	return summary, nil
}

// distributeBatch pays one batch of holders and checkpoints the job. The first batch of a
// call also opens a new job and freezes its holder balances, or picks up the unfinished
// job once the pool still covers what it owes.
func (s *protocolServiceImpl) distributeBatch(ctx context.Context, repos Repositories, now time.Time, first bool, summary *models.DistributionSummary) error {
	state, err := repos.State.Load(ctx)
	if err != nil {
		return err
	}
	expected := state.Revision

	if err := s.guard.CheckCooldown(state, now); err != nil {
		return err
	}

	job, err := repos.Jobs.Open(ctx)
	if err != nil {
		return err
	}
	switch {
	case job == nil && first:
		pool, err := repos.Ledger.Balance(ctx, state.DividendPool, models.AssetNative)
		if err != nil {
			return err
		}
		distributable, err := s.dividendProcessor.Distributable(pool)
		if err != nil {
			return err
		}
		job = &models.DistributionJob{
			ID:            uuid.NewString(),
			Status:        models.JobOpen,
			PoolBalance:   pool,
			Distributable: distributable,
			StartedAt:     time.Unix(now.Unix(), 0).UTC(),
		}
		if err := repos.Jobs.Create(ctx, job); err != nil {
			return err
		}
		holders, err := repos.Holders.Snapshot(ctx, job.ID)
		if err != nil {
			return err
		}
		logger.FromContext(ctx).Info("Distribution job started", "jobID", job.ID, "holders", holders,
			"poolBalance", pool, "distributable", distributable)
	case job == nil:
		return fmt.Errorf("distribution job %s disappeared", summary.Job.ID)
	case first:
		summary.Resumed = true
		pool, err := repos.Ledger.Balance(ctx, state.DividendPool, models.AssetNative)
		if err != nil {
			return err
		}
		var owed uint64
		if job.TotalPaid < job.Distributable {
			owed = job.Distributable - job.TotalPaid
		}
		if pool < owed {
			return fmt.Errorf("%w: pool holds %d, job %s still owes %d",
				processors.ErrInsufficientSolForDistribution, pool, job.ID, owed)
		}
	}

	var after *solana.PublicKey
	if job.HasCursor {
		after = &job.Cursor
	}
	page, err := repos.Holders.Holders(ctx, job.ID, after, s.opts.BatchSize)
	if err != nil {
		return err
	}

	holders := make([]models.HolderSnapshot, 0, len(page))
	for _, h := range page {
		if isProtocolAccount(state, h.Account) {
			continue
		}
		holders = append(holders, h)
	}

	// tenure is measured at job start
	plan := s.dividendProcessor.Plan(holders, state.Mint, state.TotalSupply, job.Distributable, job.StartedAt)
	paid := make([]models.Payout, 0, len(plan.Payouts))
	var batchPaid uint64
	skipped := plan.Skipped
	for _, po := range plan.Payouts {
		err := repos.Ledger.Transfer(ctx, state.DividendPool, po.Holder, models.AssetNative, po.Amount)
		if errors.Is(err, processors.ErrInsufficientTokenBalance) || errors.Is(err, processors.ErrInvalidTokenAccount) {
			logger.FromContext(ctx).Warn("Dividend payout skipped", "jobID", job.ID, "holder", po.Holder.String(),
				"amount", po.Amount, "error", err)
			skipped++
			continue
		}
		if err != nil {
			return err
		}
		paid = append(paid, po)
		batchPaid += po.Amount
	}

	if err := repos.Movements.Record(ctx, s.transactionProcessor.PayoutMovements(job.ID, job.Batches, state.DividendPool, paid, now)...); err != nil {
		return err
	}

	if len(page) > 0 {
		job.Cursor = page[len(page)-1].Account
		job.HasCursor = true
	}
	job.TotalPaid += batchPaid
	job.Recipients += len(paid)
	job.Skipped += skipped
	job.Batches++
	state.TotalDistributed += batchPaid

	done := len(page) < s.opts.BatchSize
	if done {
		completedAt := now
		job.Status = models.JobCompleted
		job.CompletedAt = &completedAt
		state.LastDistributionTime = now.Unix()
	}

	if err := repos.Jobs.Checkpoint(ctx, job); err != nil {
		return err
	}
	if err := repos.State.Save(ctx, state, expected); err != nil {
		return err
	}

	summary.Job = *job
	summary.Payouts = append(summary.Payouts, paid...)
	summary.Completed = done
	summary.Revision = state.Revision
	return nil
}

// isProtocolAccount reports whether key is one of the custodial accounts, which never
// receive dividends.
func isProtocolAccount(state *models.ProtocolState, key solana.PublicKey) bool {
	return key.Equals(state.DividendPool) || key.Equals(state.LPPool) || key.Equals(state.BuybackEscrow)
}

func (s *protocolServiceImpl) SetPriceFluctuation(ctx context.Context, req VolatilityRequest) (*models.ProtocolState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.verifier.Verify(req.Token, req.Authority); err != nil {
		return nil, err
	}

	var state *models.ProtocolState
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		if state, err = s.loadAsAuthority(ctx, repos, req.Authority); err != nil {
			return err
		}
		expected := state.Revision
		state.PriceFluctuationBps = req.FluctuationBps
		return repos.State.Save(ctx, state, expected)
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache()
	logger.FromContext(ctx).Info("Price fluctuation updated", "bps", req.FluctuationBps,
		"aboveThreshold", req.FluctuationBps > s.guard.ThresholdBps, "revision", state.Revision)
	return state, nil
}

func (s *protocolServiceImpl) loadAsAuthority(ctx context.Context, repos Repositories, signer solana.PublicKey) (*models.ProtocolState, error) {
	state, err := repos.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !signer.Equals(state.Authority) {
		return nil, fmt.Errorf("%w: %s is not the protocol authority", processors.ErrMissingRequiredSignature, signer)
	}
	return state, nil
}

func (s *protocolServiceImpl) CreditAccount(ctx context.Context, req CreditRequest) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.verifier.Verify(req.Token, req.Authority); err != nil {
		return nil, err
	}
	if req.Account.IsZero() {
		return nil, invalid("account is required")
	}
	if req.Asset != models.AssetNative {
		return nil, invalid("only native value can be credited, token supply is fixed")
	}

	now := s.clock.Now()
	var account models.Account
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		state, err := s.loadAsAuthority(ctx, repos, req.Authority)
		if err != nil {
			return err
		}
		if err := repos.Ledger.Open(ctx, req.Account, state.Mint); err != nil {
			return err
		}
		if req.Amount > 0 {
			if err := repos.Ledger.Credit(ctx, req.Account, req.Asset, req.Amount); err != nil {
				return err
			}
			m := s.transactionProcessor.CreditMovement(uuid.NewString(), req.Account, req.Asset, req.Amount, now)
			if err := repos.Movements.Record(ctx, m); err != nil {
				return err
			}
		}
		account, err = repos.Ledger.Account(ctx, req.Account)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateCache()
	logger.FromContext(ctx).Info("Account credited", "account", req.Account.String(), "asset", string(req.Asset), "amount", req.Amount)
	return &account, nil
}

func (s *protocolServiceImpl) GetStats(ctx context.Context) (*models.TokenStats, error) {
	if cached, found := s.statsCache.Get(ckStats); found {
		return cached.(*models.TokenStats), nil
	}

	repos := s.uow.Repositories()
	state, err := repos.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	holders, err := repos.Holders.Count(ctx, state.Mint)
	if err != nil {
		return nil, err
	}
	pool, err := repos.Ledger.Balance(ctx, state.DividendPool, models.AssetNative)
	if err != nil {
		return nil, err
	}

	stats := &models.TokenStats{
		Mint:                  state.Mint,
		TotalSupply:           state.TotalSupply,
		Holders:               holders,
		TotalDistributed:      state.TotalDistributed,
		TotalDistributedSOL:   processors.FormatSOL(state.TotalDistributed),
		PoolBalance:           pool,
		PoolBalanceSOL:        processors.FormatSOL(pool),
		DistributionThreshold: processors.DistributionThreshold,
		Guard:                 state.Guard(),
		PriceFluctuationBps:   state.PriceFluctuationBps,
		Revision:              state.Revision,
	}
	if t := state.LastDistributionAt(); !t.IsZero() {
		stats.LastDistribution = &t
	}
	if state.GuardActive {
		t := time.Unix(state.GuardActivatedAt, 0).UTC()
		stats.GuardActivatedAt = &t
	}

	s.statsCache.Set(ckStats, stats, cache.DefaultExpiration)
	return stats, nil
}

func (s *protocolServiceImpl) GetHolder(ctx context.Context, account solana.PublicKey) (*models.HolderView, error) {
	repos := s.uow.Repositories()
	state, err := repos.State.Load(ctx)
	if err != nil {
		return nil, err
	}
	holding, err := repos.Holders.Holding(ctx, account)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	held := holding.HoldingDuration(now)
	view := &models.HolderView{
		Account:       account,
		Balance:       holding.Balance,
		HoldingDays:   int(held / (24 * time.Hour)),
		BonusEligible: holding.Balance > 0 && held >= processors.HoldingBonusPeriod,
	}

	if holding.Mint.Equals(state.Mint) && !isProtocolAccount(state, account) {
		pool, err := repos.Ledger.Balance(ctx, state.DividendPool, models.AssetNative)
		if err != nil {
			return nil, err
		}
		if distributable, err := s.dividendProcessor.Distributable(pool); err == nil {
			view.NextDividend = s.dividendProcessor.CalculateShare(holding.Balance, state.TotalSupply, distributable, held)
		}
	}
	view.NextDividendSOL = processors.FormatSOL(view.NextDividend)

	view.RecentDividends, err = repos.Movements.Received(ctx, account, models.KindDividend, recentDividendsLimit)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *protocolServiceImpl) ListDistributions(ctx context.Context, limit int) ([]models.DistributionJob, error) {
	return s.uow.Repositories().Jobs.List(ctx, limit)
}

func (s *protocolServiceImpl) GetTaxDetails(ctx context.Context, since time.Time) ([]models.TaxDetail, error) {
	cacheKey := fmt.Sprintf(ckTaxDetails, since.UTC().Format(time.RFC3339))
	if cached, found := s.statsCache.Get(cacheKey); found {
		return cached.([]models.TaxDetail), nil
	}
	movements, err := s.uow.Repositories().Movements.Taxes(ctx, since)
	if err != nil {
		return nil, err
	}
	details := s.feeProcessor.Process(movements)
	s.statsCache.Set(cacheKey, details, cache.DefaultExpiration)
	return details, nil
}

func (s *protocolServiceImpl) InvalidateCache() {
	s.statsCache.Flush()
}
