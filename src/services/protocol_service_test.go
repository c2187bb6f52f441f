package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/soldrip/backend/src/database"
	"github.com/username/soldrip/backend/src/model"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/processors"
)

const testSupply uint64 = 1_000_000_000

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// keyVerifier accepts a token equal to the signer's base58 key.
type keyVerifier struct{}

func (keyVerifier) Verify(token string, signer solana.PublicKey) error {
	if token != signer.String() {
		return fmt.Errorf("%w: token does not match %s", processors.ErrMissingRequiredSignature, signer)
	}
	return nil
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	clock *fakeClock
	store *SQLStore
	svc   ProtocolService

	authority, mint, dividendPool, lpPool, escrow solana.PublicKey
}

func newHarness(t *testing.T, batchSize int, wrap func(*SQLStore) UnitOfWork) *harness {
	t.Helper()
	conn, err := database.Open(filepath.Join(t.TempDir(), "protocol.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, database.Migrate(conn))

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	store := NewSQLStore(conn, clock)
	var uow UnitOfWork = store
	if wrap != nil {
		uow = wrap(store)
	}

	h := &harness{
		t:            t,
		ctx:          context.Background(),
		clock:        clock,
		store:        store,
		authority:    solana.NewWallet().PublicKey(),
		mint:         solana.NewWallet().PublicKey(),
		dividendPool: solana.NewWallet().PublicKey(),
		lpPool:       solana.NewWallet().PublicKey(),
		escrow:       solana.NewWallet().PublicKey(),
	}
	h.svc = NewProtocolService(
		uow,
		keyVerifier{},
		clock,
		StateVolatilityFeed{},
		EscrowMarketMaker{},
		processors.NewTaxProcessor(),
		processors.NewSlippageGuard(),
		processors.NewDividendProcessor(),
		processors.NewTransactionProcessor(),
		processors.NewFeeProcessor(),
		cache.New(time.Minute, time.Minute),
		ProtocolOptions{BuybackEscrow: h.escrow, BatchSize: batchSize},
	)
	return h
}

func (h *harness) initialize() *models.ProtocolState {
	h.t.Helper()
	state, err := h.svc.Initialize(h.ctx, InitializeRequest{
		Token:        h.authority.String(),
		Authority:    h.authority,
		Mint:         h.mint,
		DividendPool: h.dividendPool,
		LPPool:       h.lpPool,
		TotalSupply:  testSupply,
	})
	require.NoError(h.t, err)
	return state
}

func (h *harness) newHolder() solana.PublicKey {
	h.t.Helper()
	acc := solana.NewWallet().PublicKey()
	_, err := h.svc.CreditAccount(h.ctx, CreditRequest{
		Token:     h.authority.String(),
		Authority: h.authority,
		Account:   acc,
		Asset:     models.AssetNative,
	})
	require.NoError(h.t, err)
	return acc
}

func (h *harness) fund(acc solana.PublicKey, lamports uint64) {
	h.t.Helper()
	_, err := h.svc.CreditAccount(h.ctx, CreditRequest{
		Token:     h.authority.String(),
		Authority: h.authority,
		Account:   acc,
		Asset:     models.AssetNative,
		Amount:    lamports,
	})
	require.NoError(h.t, err)
}

func (h *harness) transfer(from, to solana.PublicKey, amount uint64) (*models.TransferResult, error) {
	return h.svc.TransferWithTax(h.ctx, TransferRequest{Token: from.String(), Source: from, Destination: to, Amount: amount})
}

func (h *harness) setFluctuation(bps uint16) {
	h.t.Helper()
	_, err := h.svc.SetPriceFluctuation(h.ctx, VolatilityRequest{Token: h.authority.String(), Authority: h.authority, FluctuationBps: bps})
	require.NoError(h.t, err)
}

func (h *harness) account(key solana.PublicKey) models.Account {
	h.t.Helper()
	a, err := h.store.Repositories().Ledger.Account(h.ctx, key)
	require.NoError(h.t, err)
	return a
}

func (h *harness) state() *models.ProtocolState {
	h.t.Helper()
	s, err := h.store.Repositories().State.Load(h.ctx)
	require.NoError(h.t, err)
	return s
}

func TestInitialize(t *testing.T) {
	h := newHarness(t, 10, nil)

	_, err := h.svc.Initialize(h.ctx, InitializeRequest{
		Token: "nope", Authority: h.authority, Mint: h.mint, DividendPool: h.dividendPool, LPPool: h.lpPool, TotalSupply: testSupply,
	})
	assert.ErrorIs(t, err, processors.ErrMissingRequiredSignature)

	_, err = h.svc.Initialize(h.ctx, InitializeRequest{
		Token: h.authority.String(), Authority: h.authority, Mint: h.mint, DividendPool: h.mint, LPPool: h.lpPool, TotalSupply: testSupply,
	})
	assert.ErrorIs(t, err, processors.ErrInvalidInstruction)

	state := h.initialize()
	assert.Equal(t, uint64(1), state.Revision)
	assert.Equal(t, testSupply, state.TotalSupply)
	assert.Zero(t, state.TotalDistributed)
	assert.Zero(t, state.LastDistributionTime)
	assert.Equal(t, models.GuardNormal, state.Guard())
	assert.True(t, state.BuybackEscrow.Equals(h.escrow))

	assert.Equal(t, testSupply, h.account(h.authority).Token)

	_, err = h.svc.Initialize(h.ctx, InitializeRequest{
		Token: h.authority.String(), Authority: h.authority, Mint: h.mint, DividendPool: h.dividendPool, LPPool: h.lpPool, TotalSupply: testSupply,
	})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestOperationsRequireInitialization(t *testing.T) {
	h := newHarness(t, 10, nil)
	dst := solana.NewWallet().PublicKey()

	_, err := h.transfer(h.authority, dst, 100)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = h.svc.GetStats(h.ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTransferWithTaxNormalRoute(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	dst := h.newHolder()

	res, err := h.transfer(h.authority, dst, 5_000_000)
	require.NoError(t, err)

	assert.Equal(t, models.RouteNormal, res.Routing.Mode)
	assert.Equal(t, uint64(250_000), res.Breakdown.TotalTax)
	assert.Len(t, res.Movements, 3)
	assert.Equal(t, models.GuardNormal, res.Guard)
	assert.Equal(t, uint64(2), res.Revision)

	assert.Equal(t, testSupply-5_000_000, h.account(h.authority).Token)
	assert.Equal(t, uint64(4_750_000), h.account(dst).Token)
	assert.Equal(t, uint64(50_000), h.account(h.lpPool).Token)
	assert.Equal(t, uint64(200_000), h.account(h.dividendPool).Token)

	details, err := h.svc.GetTaxDetails(h.ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, details, 2)
	var total uint64
	for _, d := range details {
		total += d.Amount
	}
	assert.Equal(t, uint64(250_000), total)
}

func TestTransferRejectionsLeaveNoTrace(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	dst := h.newHolder()
	poor := h.newHolder()
	before := h.state().Revision

	// a large sale: net 30_360_000 is above the 30_000_000 holding cap
	_, err := h.transfer(h.authority, dst, 33_000_000)
	assert.ErrorIs(t, err, processors.ErrExceedsMaximumHolding)

	_, err = h.transfer(poor, dst, 1)
	assert.ErrorIs(t, err, processors.ErrInsufficientTokenBalance)

	_, err = h.transfer(h.authority, solana.NewWallet().PublicKey(), 1_000)
	assert.ErrorIs(t, err, processors.ErrInvalidTokenAccount)

	_, err = h.svc.TransferWithTax(h.ctx, TransferRequest{Token: dst.String(), Source: h.authority, Destination: dst, Amount: 1_000})
	assert.ErrorIs(t, err, processors.ErrMissingRequiredSignature)

	_, err = h.transfer(h.authority, h.authority, 1_000)
	assert.ErrorIs(t, err, processors.ErrInvalidInstruction)

	assert.Equal(t, testSupply, h.account(h.authority).Token)
	assert.Zero(t, h.account(dst).Token)
	assert.Zero(t, h.account(h.lpPool).Token)
	assert.Equal(t, before, h.state().Revision)
}

func TestSlippageGuardBuybackAndCooldown(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	dst := h.newHolder()
	h.fund(h.dividendPool, processors.DistributionThreshold)

	h.setFluctuation(2_000)
	res, err := h.transfer(h.authority, dst, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, models.RouteBuyback, res.Routing.Mode)
	assert.Equal(t, models.GuardProtected, res.Guard)
	assert.Equal(t, uint64(200_000), h.account(h.escrow).Token)
	assert.Equal(t, uint64(50_000), h.account(h.dividendPool).Token)
	assert.Zero(t, h.account(h.lpPool).Token)

	h.clock.Advance(599 * time.Second)
	_, err = h.transfer(h.authority, dst, 1_000)
	assert.ErrorIs(t, err, processors.ErrSlippageProtectionActive)
	_, err = h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: dst.String(), Distributor: dst})
	assert.ErrorIs(t, err, processors.ErrSlippageProtectionActive)

	h.setFluctuation(100)
	h.clock.Advance(time.Second)
	res, err = h.transfer(h.authority, dst, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, models.RouteNormal, res.Routing.Mode)
	assert.Equal(t, models.GuardNormal, res.Guard)
	assert.Zero(t, h.state().GuardActivatedAt)
}

func TestDistributeBelowThreshold(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	h.fund(h.dividendPool, processors.DistributionThreshold-1)

	_, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	assert.ErrorIs(t, err, processors.ErrInsufficientSolForDistribution)

	jobs, err := h.svc.ListDistributions(h.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

// seedHolders moves 20_000_000 tokens to n new holders and funds the pool.
func seedHolders(h *harness, n int, pool uint64) []solana.PublicKey {
	h.t.Helper()
	var holders []solana.PublicKey
	for i := 0; i < n; i++ {
		acc := h.newHolder()
		_, err := h.transfer(h.authority, acc, 20_000_000)
		require.NoError(h.t, err)
		holders = append(holders, acc)
	}
	h.fund(h.dividendPool, pool)
	return holders
}

func expectedShares(h *harness, accounts []solana.PublicKey, distributable uint64) map[solana.PublicKey]uint64 {
	dp := processors.NewDividendProcessor()
	out := map[solana.PublicKey]uint64{}
	for _, a := range accounts {
		out[a] = dp.CalculateShare(h.account(a).Token, testSupply, distributable, 0)
	}
	return out
}

func TestDistributeDividendsInBatches(t *testing.T) {
	h := newHarness(t, 2, nil)
	h.initialize()
	holders := seedHolders(h, 3, 1_000_000_000)
	h.clock.Advance(time.Hour)

	payees := append([]solana.PublicKey{h.authority}, holders...)
	want := expectedShares(h, payees, 980_000_000)

	summary, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: holders[0].String(), Distributor: holders[0]})
	require.NoError(t, err)

	assert.True(t, summary.Completed)
	assert.False(t, summary.Resumed)
	assert.Equal(t, models.JobCompleted, summary.Job.Status)
	assert.Equal(t, uint64(980_000_000), summary.Job.Distributable)
	assert.Equal(t, len(payees), summary.Job.Recipients)
	assert.GreaterOrEqual(t, summary.Job.Batches, 3)

	var total uint64
	for _, po := range summary.Payouts {
		assert.Equal(t, want[po.Holder], po.Amount, po.Holder.String())
		assert.False(t, po.Bonus)
		assert.False(t, po.Holder.Equals(h.lpPool) || po.Holder.Equals(h.dividendPool))
		total += po.Amount
	}
	assert.Equal(t, total, summary.Job.TotalPaid)

	state := h.state()
	assert.Equal(t, total, state.TotalDistributed)
	assert.Equal(t, h.clock.now.Unix(), state.LastDistributionTime)
	assert.Equal(t, 1_000_000_000-total, h.account(h.dividendPool).Native)
	for _, p := range payees {
		assert.Equal(t, want[p], h.account(p).Native)
	}

	stats, err := h.svc.GetStats(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, total, stats.TotalDistributed)
	require.NotNil(t, stats.LastDistribution)
}

// failingUnitOfWork fails the native transfer to one account until disarmed.
type failingUnitOfWork struct {
	*SQLStore
	target solana.PublicKey
	armed  bool
}

func (f *failingUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return f.SQLStore.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		repos.Ledger = &failingLedger{Ledger: repos.Ledger, owner: f}
		return fn(ctx, repos)
	})
}

type failingLedger struct {
	Ledger
	owner *failingUnitOfWork
}

func (l *failingLedger) Transfer(ctx context.Context, from, to solana.PublicKey, asset models.Asset, amount uint64) error {
	if l.owner.armed && asset == models.AssetNative && to.Equals(l.owner.target) {
		return errors.New("ledger unavailable")
	}
	return l.Ledger.Transfer(ctx, from, to, asset, amount)
}

func TestDistributionResumesAfterFailedBatch(t *testing.T) {
	var flaky *failingUnitOfWork
	h := newHarness(t, 1, func(s *SQLStore) UnitOfWork {
		flaky = &failingUnitOfWork{SQLStore: s}
		return flaky
	})
	h.initialize()
	holders := seedHolders(h, 3, 1_000_000_000)
	payees := append([]solana.PublicKey{h.authority}, holders...)
	want := expectedShares(h, payees, 980_000_000)

	sort.Slice(payees, func(i, j int) bool { return payees[i].String() < payees[j].String() })
	flaky.target = payees[len(payees)-1]
	flaky.armed = true

	_, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	require.Error(t, err)

	jobs, err := h.svc.ListDistributions(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobOpen, jobs[0].Status)
	assert.Equal(t, len(payees)-1, jobs[0].Recipients)
	assert.Zero(t, h.account(flaky.target).Native)
	assert.Equal(t, jobs[0].TotalPaid, h.state().TotalDistributed)
	assert.Zero(t, h.state().LastDistributionTime)

	flaky.armed = false
	summary, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	require.NoError(t, err)
	assert.True(t, summary.Resumed)
	assert.True(t, summary.Completed)
	assert.Equal(t, jobs[0].ID, summary.Job.ID)
	assert.Equal(t, len(payees), summary.Job.Recipients)

	var total uint64
	for _, p := range payees {
		assert.Equal(t, want[p], h.account(p).Native, p.String())
		total += want[p]
	}
	assert.Equal(t, total, h.state().TotalDistributed)
}

// interruptedDistribution seeds three holders and runs a distribution in batches of one
// whose payout to the last of them, in account order, fails.
func interruptedDistribution(t *testing.T) (*harness, *failingUnitOfWork, []solana.PublicKey, map[solana.PublicKey]uint64) {
	t.Helper()
	var flaky *failingUnitOfWork
	h := newHarness(t, 1, func(s *SQLStore) UnitOfWork {
		flaky = &failingUnitOfWork{SQLStore: s}
		return flaky
	})
	h.initialize()
	holders := seedHolders(h, 3, 1_000_000_000)
	want := expectedShares(h, append([]solana.PublicKey{h.authority}, holders...), 980_000_000)

	sort.Slice(holders, func(i, j int) bool { return holders[i].String() < holders[j].String() })
	flaky.target = holders[len(holders)-1]
	flaky.armed = true

	_, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	require.Error(t, err)
	require.Zero(t, h.account(flaky.target).Native)
	flaky.armed = false
	return h, flaky, holders, want
}

func TestResumedDistributionPaysBalancesFrozenAtStart(t *testing.T) {
	h, flaky, holders, want := interruptedDistribution(t)
	paid := holders[0]
	require.Equal(t, want[paid], h.account(paid).Native)

	// a paid holder moves tokens to the holder still waiting for its payout
	_, err := h.transfer(paid, flaky.target, 5_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(23_750_000), h.account(flaky.target).Token)

	summary, err := h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	require.NoError(t, err)
	assert.True(t, summary.Resumed)
	assert.True(t, summary.Completed)
	assert.LessOrEqual(t, summary.Job.TotalPaid, summary.Job.Distributable)

	var total uint64
	for acc, share := range want {
		assert.Equal(t, share, h.account(acc).Native, acc.String())
		total += share
	}
	assert.Equal(t, total, summary.Job.TotalPaid)
	assert.Equal(t, total, h.state().TotalDistributed)
}

func TestResumeNeedsPoolToCoverRemainingPayouts(t *testing.T) {
	h, _, _, _ := interruptedDistribution(t)

	jobs, err := h.svc.ListDistributions(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	owed := job.Distributable - job.TotalPaid
	pool := h.account(h.dividendPool).Native
	require.Greater(t, pool, owed)
	require.NoError(t, model.DebitAccount(h.ctx, h.store.db, h.dividendPool, models.AssetNative, pool-owed+1))

	_, err = h.svc.DistributeDividends(h.ctx, DistributeRequest{Token: h.authority.String(), Distributor: h.authority})
	assert.ErrorIs(t, err, processors.ErrInsufficientSolForDistribution)

	jobs, err = h.svc.ListDistributions(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobOpen, jobs[0].Status)
	assert.Equal(t, job.TotalPaid, jobs[0].TotalPaid)
	assert.Equal(t, job.Batches, jobs[0].Batches)
}

func TestCreditPastStorableRangeIsRejected(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	acc := h.newHolder()
	h.fund(acc, math.MaxInt64)

	_, err := h.svc.CreditAccount(h.ctx, CreditRequest{
		Token:     h.authority.String(),
		Authority: h.authority,
		Account:   acc,
		Asset:     models.AssetNative,
		Amount:    10,
	})
	assert.ErrorIs(t, err, processors.ErrInvalidInstruction)
	assert.Equal(t, uint64(math.MaxInt64), h.account(acc).Native)
}

func TestHolderViewTracksTenure(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	holder := h.newHolder()
	_, err := h.transfer(h.authority, holder, 20_000_000)
	require.NoError(t, err)
	h.fund(h.dividendPool, 1_000_000_000)

	view, err := h.svc.GetHolder(h.ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, uint64(19_000_000), view.Balance)
	assert.Zero(t, view.HoldingDays)
	assert.False(t, view.BonusEligible)
	assert.Equal(t, uint64(18_620_000), view.NextDividend)

	h.clock.Advance(8 * 24 * time.Hour)
	view, err = h.svc.GetHolder(h.ctx, holder)
	require.NoError(t, err)
	assert.Equal(t, 8, view.HoldingDays)
	assert.True(t, view.BonusEligible)
	assert.Equal(t, uint64(20_482_000), view.NextDividend)
	assert.Equal(t, "0.020482000", view.NextDividendSOL)

	_, err = h.svc.GetHolder(h.ctx, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, processors.ErrInvalidTokenAccount)
}

func TestAuthorityOnlyOperations(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()
	stranger := solana.NewWallet().PublicKey()

	_, err := h.svc.SetPriceFluctuation(h.ctx, VolatilityRequest{Token: stranger.String(), Authority: stranger, FluctuationBps: 5})
	assert.ErrorIs(t, err, processors.ErrMissingRequiredSignature)

	_, err = h.svc.CreditAccount(h.ctx, CreditRequest{Token: stranger.String(), Authority: stranger, Account: stranger, Asset: models.AssetNative, Amount: 1})
	assert.ErrorIs(t, err, processors.ErrMissingRequiredSignature)

	_, err = h.svc.CreditAccount(h.ctx, CreditRequest{Token: h.authority.String(), Authority: h.authority, Account: stranger, Asset: models.AssetToken, Amount: 1})
	assert.ErrorIs(t, err, processors.ErrInvalidInstruction)
}

func TestStatsCacheIsInvalidatedByWrites(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.initialize()

	stats, err := h.svc.GetStats(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PoolBalance)
	assert.Equal(t, 1, stats.Holders)

	h.fund(h.dividendPool, 250_000_000)
	stats, err = h.svc.GetStats(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), stats.PoolBalance)
	assert.Equal(t, "0.250000000", stats.PoolBalanceSOL)
}
