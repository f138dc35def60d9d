package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"veridraws/internal/blockchain"
	"veridraws/internal/draw"
	"veridraws/internal/logger"
	"veridraws/internal/storage"
	"veridraws/internal/wallet"
)

// Publisher is told about every snapshot a sync publishes.
type Publisher interface {
	PublishSynced(ctx context.Context, snapshot *draw.Snapshot) error
}

type Options struct {
	ProgramID      solana.PublicKey
	AccountSize    uint64
	SyncTimeout    time.Duration
	ConfirmTimeout time.Duration
	Retry          RetryPolicy
}

// Tracker keeps the categorized draw snapshot in sync with the chain and
// submits draw transactions on behalf of the wallet.
type Tracker struct {
	source    blockchain.AccountSource
	decoder   blockchain.Decoder
	wallet    wallet.Wallet
	storage   storage.Storage
	publisher Publisher
	options   Options
	now       func() time.Time

	flight   singleflight.Group
	sequence atomic.Uint64
	inflight atomic.Int32
	mutating atomic.Bool

	mu           sync.RWMutex
	snapshot     *draw.Snapshot
	publishedSeq uint64
	lastError    string
}

func NewTracker(source blockchain.AccountSource, decoder blockchain.Decoder, w wallet.Wallet, options Options) *Tracker {
	if options.SyncTimeout <= 0 {
		options.SyncTimeout = DefaultSyncTimeout
	}
	if options.ConfirmTimeout <= 0 {
		options.ConfirmTimeout = DefaultConfirmTimeout
	}
	options.Retry = options.Retry.withDefaults()

	logger.Debug("tracker initialization",
		zap.String("program", options.ProgramID.String()),
		zap.Uint64("account size", options.AccountSize),
		zap.Duration("sync timeout", options.SyncTimeout),
	)

	return &Tracker{
		source:  source,
		decoder: decoder,
		wallet:  w,
		options: options,
		now:     time.Now,
	}
}

func (t *Tracker) WithStorage(s storage.Storage) *Tracker {
	t.storage = s
	return t
}

func (t *Tracker) WithPublisher(p Publisher) *Tracker {
	t.publisher = p
	return t
}

// Snapshot returns the latest published snapshot, or nil before the first
// sync or restore. The result must not be modified.
func (t *Tracker) Snapshot() *draw.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

func (t *Tracker) IsLoading() bool {
	return t.inflight.Load() > 0
}

// LastError is the user-facing message of the last failed operation, empty
// once an operation starts again.
func (t *Tracker) LastError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}

// Identity is the wallet's public key, or ErrNotConnected.
func (t *Tracker) Identity() (solana.PublicKey, error) {
	if t.wallet == nil {
		return solana.PublicKey{}, ErrNotConnected
	}
	identity, err := t.wallet.PublicKey()
	if err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			return solana.PublicKey{}, ErrNotConnected
		}
		return solana.PublicKey{}, err
	}
	return identity, nil
}

// Restore publishes the persisted draws so callers have data before the first
// sync completes. It never replaces a snapshot produced by a sync.
func (t *Tracker) Restore(identity solana.PublicKey) error {
	if t.storage == nil {
		return nil
	}

	logger.Debug("tracker: restoring persisted draws...")
	records, err := t.storage.GetDraws()
	if err != nil {
		return err
	}

	snapshot := draw.NewSnapshot(records, identity, draw.SourceStorage, 0, t.now())

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshot != nil {
		logger.Debug("tracker: snapshot already present, restore skipped")
		return nil
	}
	t.snapshot = snapshot

	logger.Debug("tracker: restoring persisted draws... done", zap.Int("draws", len(records)))
	return nil
}

// RestoreWallet restores for the wallet identity, or for nobody when no
// wallet is connected. Viewers recategorize the result with Snapshot.For.
func (t *Tracker) RestoreWallet() error {
	identity, err := t.Identity()
	switch {
	case errors.Is(err, ErrNotConnected):
		identity = solana.PublicKey{}
	case err != nil:
		return err
	}
	return t.Restore(identity)
}

func (t *Tracker) setError(message string) {
	t.mu.Lock()
	t.lastError = message
	t.mu.Unlock()
}

// publish stores snapshot unless a newer fetch already published one.
func (t *Tracker) publish(seq uint64, snapshot *draw.Snapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq < t.publishedSeq {
		return false
	}
	t.publishedSeq = seq
	t.snapshot = snapshot
	return true
}
