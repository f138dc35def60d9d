package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"veridraws/internal/blockchain"
	"veridraws/internal/draw"
	"veridraws/internal/logger"
	"veridraws/internal/storage"
)

type fetchResult struct {
	seq     uint64
	records []draw.Record
	source  draw.Source
	skipped int
}

// Sync refreshes the snapshot from the chain and categorizes it for identity.
//
// Without an account source or identity it does nothing and returns a nil
// snapshot. Concurrent calls share one fetch. On failure the previous snapshot
// stays published and LastError carries a user-facing message.
func (t *Tracker) Sync(ctx context.Context, identity solana.PublicKey) (*draw.Snapshot, error) {
	if t.source == nil || t.decoder == nil || identity.IsZero() {
		logger.Debug("synchronize: no connection or identity, skipping")
		return nil, nil
	}

	t.inflight.Add(1)
	defer t.inflight.Add(-1)
	t.setError("")

	startedAt := t.now()
	ctx, cancel := context.WithTimeout(ctx, t.options.SyncTimeout)
	defer cancel()

	logger.Debug("synchronize: fetching draws...", zap.String("identity", identity.String()))

	// The shared fetch belongs to the pipeline, not to the caller that
	// started it: callers leaving early must not fail the others.
	fetchCtx := context.WithoutCancel(ctx)
	flight := t.flight.DoChan(syncFlightKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(fetchCtx, t.options.SyncTimeout)
		defer cancel()
		return t.fetchDraws(ctx)
	})

	var fetched *fetchResult
	select {
	case <-ctx.Done():
		return nil, t.syncAbandoned(ctx, identity, startedAt)
	case result := <-flight:
		if result.Err != nil {
			return nil, t.syncFailed(ctx, identity, startedAt, result.Err)
		}
		if ctx.Err() != nil {
			return nil, t.syncAbandoned(ctx, identity, startedAt)
		}
		fetched = result.Val.(*fetchResult)
	}

	snapshot := draw.NewSnapshot(fetched.records, identity, fetched.source, fetched.skipped, t.now())
	if !t.publish(fetched.seq, snapshot) {
		logger.Debug("synchronize: newer snapshot already published, keeping it")
		return snapshot, nil
	}

	logger.Info("synchronize: draws synced",
		zap.String("identity", identity.String()),
		zap.String("source", string(snapshot.Source)),
		zap.Int("draws", len(snapshot.Draws)),
		zap.Int("mine", len(snapshot.Mine)),
		zap.Int("joined", len(snapshot.Joined)),
		zap.Int("available", len(snapshot.Available)),
		zap.Int("skipped", snapshot.Skipped),
	)

	t.persist(snapshot, startedAt)
	t.notify(ctx, snapshot)
	return snapshot, nil
}

// SyncWallet syncs for the wallet identity; without a connected wallet it does
// nothing.
func (t *Tracker) SyncWallet(ctx context.Context) (*draw.Snapshot, error) {
	identity, err := t.Identity()
	if errors.Is(err, ErrNotConnected) {
		logger.Debug("synchronize: wallet not connected, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindNotConnected, "sync", err)
	}
	return t.Sync(ctx, identity)
}

func (t *Tracker) fetchDraws(ctx context.Context) (*fetchResult, error) {
	seq := t.sequence.Add(1)

	records, err := Retry(ctx, t.options.Retry, func() ([]draw.Record, error) {
		return t.fetchPrimary(ctx)
	})
	if err == nil {
		return &fetchResult{seq: seq, records: records, source: draw.SourcePrimary}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Warn("synchronize: primary draw query failed, falling back to size filtered query", zap.Error(err))

	result, err := Retry(ctx, t.options.Retry, func() (*fetchResult, error) {
		return t.fetchFallback(ctx)
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result.seq = seq
	return result, nil
}

// fetchPrimary loads every account the program owns and decodes those that
// carry the draw discriminator. Any other decode failure fails the whole
// query without a retry.
func (t *Tracker) fetchPrimary(ctx context.Context) ([]draw.Record, error) {
	accounts, err := t.source.QueryAllByOwner(ctx, t.options.ProgramID)
	if err != nil {
		return nil, newError(KindNetwork, "query draws", err)
	}

	records := make([]draw.Record, 0, len(accounts))
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := t.decoder.Decode(blockchain.DrawAccountLayout, account.Data)
		if errors.Is(err, blockchain.ErrDiscriminatorMismatch) {
			continue
		}
		if err != nil {
			return nil, Permanent(newError(KindDecode, "decode draw "+account.Address.String(), err))
		}

		records = append(records, draw.Normalize(account.Address, *raw))
	}

	return records, nil
}

// fetchFallback loads accounts of the draw account size and decodes them one
// by one, dropping those that fail.
func (t *Tracker) fetchFallback(ctx context.Context) (*fetchResult, error) {
	accounts, err := t.source.QueryByFilter(ctx, t.options.ProgramID, t.options.AccountSize)
	if err != nil {
		return nil, newError(KindNetwork, "query draws by size", err)
	}

	result := &fetchResult{
		records: make([]draw.Record, 0, len(accounts)),
		source:  draw.SourceFallback,
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := t.decoder.Decode(blockchain.DrawAccountLayout, account.Data)
		if err != nil {
			logger.Warn("synchronize: failed to decode draw account",
				zap.String("address", account.Address.String()),
				zap.Error(err),
			)
			result.skipped++
			continue
		}

		result.records = append(result.records, draw.Normalize(account.Address, *raw))
	}

	return result, nil
}

// syncAbandoned handles a caller whose own context ended. Past the deadline
// it is a timeout; a plain cancellation is not a sync failure and leaves
// LastError and the journal alone.
func (t *Tracker) syncAbandoned(ctx context.Context, identity solana.PublicKey, startedAt time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return t.syncFailed(ctx, identity, startedAt, ctx.Err())
	}

	logger.Debug("synchronize: caller cancelled, leaving the shared fetch", zap.String("identity", identity.String()))
	return ctx.Err()
}

func (t *Tracker) syncFailed(ctx context.Context, identity solana.PublicKey, startedAt time.Time, cause error) error {
	var err *Error
	var message string

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded):
		err = newError(KindTimeout, "sync", fmt.Errorf("no result within %s: %w", t.options.SyncTimeout, context.DeadlineExceeded))
		message = syncTimeoutMessage
	case errors.As(cause, &err):
		message = syncFailureMessage
	default:
		err = newError(KindNetwork, "sync", cause)
		message = syncFailureMessage
	}

	t.setError(message)
	logger.Error("synchronize: failed to fetch draws", zap.String("identity", identity.String()), zap.Error(err))

	t.recordRun(&storage.SyncRun{
		Identity:   identity.String(),
		Source:     "none",
		Error:      err.Error(),
		StartedAt:  startedAt,
		FinishedAt: t.now(),
	})
	return err
}

func (t *Tracker) persist(snapshot *draw.Snapshot, startedAt time.Time) {
	if t.storage == nil {
		return
	}

	if err := t.storage.ReplaceDraws(snapshot.Draws); err != nil {
		logger.Error("synchronize: cannot persist draws", zap.Error(err))
	}

	t.recordRun(&storage.SyncRun{
		Identity:   snapshot.Identity.String(),
		Source:     string(snapshot.Source),
		Records:    len(snapshot.Draws),
		Skipped:    snapshot.Skipped,
		StartedAt:  startedAt,
		FinishedAt: snapshot.SyncedAt,
	})
}

func (t *Tracker) recordRun(run *storage.SyncRun) {
	if t.storage == nil {
		return
	}
	if err := t.storage.AddSyncRun(run); err != nil {
		logger.Error("synchronize: cannot record sync run", zap.Error(err))
	}
}

func (t *Tracker) notify(ctx context.Context, snapshot *draw.Snapshot) {
	if t.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := t.publisher.PublishSynced(ctx, snapshot); err != nil {
		logger.Warn("synchronize: cannot publish sync event", zap.Error(err))
	}
}
