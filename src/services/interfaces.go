// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/username/soldrip/backend/src/models"
)

// Define common service errors
var (
	ErrNotInitialized     = errors.New("protocol is not initialized")
	ErrAlreadyInitialized = errors.New("protocol is already initialized")
	ErrStaleState         = errors.New("protocol state was modified concurrently")
)

// Ledger moves value between accounts. A failed Transfer leaves no partial effect.
type Ledger interface {
	Open(ctx context.Context, account, mint solana.PublicKey) error
	Account(ctx context.Context, account solana.PublicKey) (models.Account, error)
	Balance(ctx context.Context, account solana.PublicKey, asset models.Asset) (uint64, error)
	Transfer(ctx context.Context, from, to solana.PublicKey, asset models.Asset, amount uint64) error
	Credit(ctx context.Context, account solana.PublicKey, asset models.Asset, amount uint64) error
}

// HolderRegistry freezes token holders for a distribution job and enumerates them in
// ascending account order.
type HolderRegistry interface {
	Snapshot(ctx context.Context, jobID string) (int, error)
	Holders(ctx context.Context, jobID string, after *solana.PublicKey, limit int) ([]models.HolderSnapshot, error)
	Holding(ctx context.Context, account solana.PublicKey) (models.HolderSnapshot, error)
	Count(ctx context.Context, mint solana.PublicKey) (int, error)
}

// StateStore loads and stores the protocol record. Save succeeds only while the stored
// revision equals expectedRevision and bumps the revision by one.
type StateStore interface {
	Load(ctx context.Context) (*models.ProtocolState, error)
	Create(ctx context.Context, state *models.ProtocolState) error
	Save(ctx context.Context, state *models.ProtocolState, expectedRevision uint64) error
}

// JobStore persists distribution job checkpoints.
type JobStore interface {
	Open(ctx context.Context) (*models.DistributionJob, error)
	Create(ctx context.Context, job *models.DistributionJob) error
	Checkpoint(ctx context.Context, job *models.DistributionJob) error
	List(ctx context.Context, limit int) ([]models.DistributionJob, error)
}

// MovementLog records every value movement issued by the protocol.
type MovementLog interface {
	Record(ctx context.Context, movements ...models.LedgerMovement) error
	Received(ctx context.Context, account solana.PublicKey, kind string, limit int) ([]models.LedgerMovement, error)
	Taxes(ctx context.Context, since time.Time) ([]models.LedgerMovement, error)
}

// Repositories is the set of collaborators bound to one unit of work.
type Repositories struct {
	Ledger    Ledger
	Holders   HolderRegistry
	State     StateStore
	Jobs      JobStore
	Movements MovementLog
}

// UnitOfWork runs fn atomically: either every write made through repos is kept or none is.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Repositories() Repositories
}

// SignerVerifier confirms that token proves control of signer.
type SignerVerifier interface {
	Verify(token string, signer solana.PublicKey) error
}

type Clock interface {
	Now() time.Time
}

// VolatilityFeed supplies the current price fluctuation in basis points.
type VolatilityFeed interface {
	FluctuationBps(ctx context.Context, state *models.ProtocolState) (uint16, error)
}

// BuybackOrder is the tax share earmarked for a market buyback.
type BuybackOrder struct {
	RequestID string
	From      solana.PublicKey
	Escrow    solana.PublicKey
	Amount    uint64
}

// MarketMaker executes buybacks. Implementations move order.Amount tokens out of
// order.From through ledger and must fail without partial effect.
type MarketMaker interface {
	Buyback(ctx context.Context, ledger Ledger, order BuybackOrder) error
}

type InitializeRequest struct {
	Token         string           `json:"-"`
	Authority     solana.PublicKey `json:"authority"`
	Mint          solana.PublicKey `json:"mint"`
	DividendPool  solana.PublicKey `json:"dividend_pool"`
	LPPool        solana.PublicKey `json:"lp_pool"`
	BuybackEscrow solana.PublicKey `json:"buyback_escrow"`
	TotalSupply   uint64           `json:"total_supply"`
}

type TransferRequest struct {
	Token       string           `json:"-"`
	RequestID   string           `json:"-"`
	Source      solana.PublicKey `json:"source"`
	Destination solana.PublicKey `json:"destination"`
	Amount      uint64           `json:"amount"`
	Memo        string           `json:"memo,omitempty"`
}

type DistributeRequest struct {
	Token       string           `json:"-"`
	Distributor solana.PublicKey `json:"distributor"`
}

type VolatilityRequest struct {
	Token          string           `json:"-"`
	Authority      solana.PublicKey `json:"authority"`
	FluctuationBps uint16           `json:"fluctuation_bps"`
}

type CreditRequest struct {
	Token     string           `json:"-"`
	Authority solana.PublicKey `json:"authority"`
	Account   solana.PublicKey `json:"account"`
	Asset     models.Asset     `json:"asset"`
	Amount    uint64           `json:"amount"`
}

// ProtocolService is the operation surface of a protocol instance.
type ProtocolService interface {
	Initialize(ctx context.Context, req InitializeRequest) (*models.ProtocolState, error)
	TransferWithTax(ctx context.Context, req TransferRequest) (*models.TransferResult, error)
	DistributeDividends(ctx context.Context, req DistributeRequest) (*models.DistributionSummary, error)
	SetPriceFluctuation(ctx context.Context, req VolatilityRequest) (*models.ProtocolState, error)
	CreditAccount(ctx context.Context, req CreditRequest) (*models.Account, error)

	GetStats(ctx context.Context) (*models.TokenStats, error)
	GetHolder(ctx context.Context, account solana.PublicKey) (*models.HolderView, error)
	ListDistributions(ctx context.Context, limit int) ([]models.DistributionJob, error)
	GetTaxDetails(ctx context.Context, since time.Time) ([]models.TaxDetail, error)
	InvalidateCache()
}
