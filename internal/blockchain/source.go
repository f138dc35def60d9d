package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"veridraws/internal/logger"
)

const confirmationPollInterval = 700 * time.Millisecond

var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrAccountNotFound   = errors.New("account not found")
)

type RawAccount struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

type AccountInfo struct {
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
}

// AccountSource is the remote side of the pipeline: it lists accounts owned by
// a program and submits signed transactions.
type AccountSource interface {
	QueryAllByOwner(ctx context.Context, owner solana.PublicKey) ([]RawAccount, error)
	QueryByFilter(ctx context.Context, owner solana.PublicKey, dataSize uint64) ([]RawAccount, error)
	AccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	AwaitConfirmation(ctx context.Context, signature solana.Signature) error
}

type RPCSource struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

func NewRPCSource(endpoint string, commitment rpc.CommitmentType) *RPCSource {
	logger.Debug("rpc source: connecting", zap.String("endpoint", endpoint), zap.String("commitment", string(commitment)))
	return &RPCSource{
		client:     rpc.New(endpoint),
		commitment: commitment,
	}
}

func (s *RPCSource) QueryAllByOwner(ctx context.Context, owner solana.PublicKey) ([]RawAccount, error) {
	result, err := s.client.GetProgramAccountsWithOpts(ctx, owner, &rpc.GetProgramAccountsOpts{
		Commitment: s.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s: %w", owner, err)
	}
	return toRawAccounts(result), nil
}

func (s *RPCSource) QueryByFilter(ctx context.Context, owner solana.PublicKey, dataSize uint64) ([]RawAccount, error) {
	result, err := s.client.GetProgramAccountsWithOpts(ctx, owner, &rpc.GetProgramAccountsOpts{
		Commitment: s.commitment,
		Filters: []rpc.RPCFilter{
			{DataSize: dataSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s size %d: %w", owner, dataSize, err)
	}
	return toRawAccounts(result), nil
}

func (s *RPCSource) AccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	result, err := s.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: s.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", address, err)
	}
	if result == nil || result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	return &AccountInfo{
		Owner:      result.Value.Owner,
		Lamports:   result.Value.Lamports,
		Executable: result.Value.Executable,
	}, nil
}

func (s *RPCSource) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := s.client.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return recent.Value.Blockhash, nil
}

func (s *RPCSource) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	signature, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: s.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	logger.Debug("rpc source: transaction submitted", zap.String("signature", signature.String()))
	return signature, nil
}

// AwaitConfirmation polls the signature status until the cluster reports it
// confirmed or finalized, the transaction fails, or ctx ends.
func (s *RPCSource) AwaitConfirmation(ctx context.Context, signature solana.Signature) error {
	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.client.GetSignatureStatuses(ctx, true, signature)
			if err != nil {
				logger.Debug("rpc source: signature status unavailable", zap.String("signature", signature.String()), zap.Error(err))
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

func toRawAccounts(result rpc.GetProgramAccountsResult) []RawAccount {
	accounts := make([]RawAccount, 0, len(result))
	for _, item := range result {
		if item == nil || item.Account == nil {
			continue
		}
		accounts = append(accounts, RawAccount{
			Address: item.Pubkey,
			Owner:   item.Account.Owner,
			Data:    item.Account.Data.GetBinary(),
		})
	}
	return accounts
}
