package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"veridraws/internal/blockchain"
	"veridraws/internal/draw"
	"veridraws/internal/logger"
)

// CreateDrawRequest describes a new draw. TicketPrice is in SOL.
type CreateDrawRequest struct {
	Name            string
	Description     string
	TicketPrice     decimal.Decimal
	MaxParticipants uint32
}

type CreateDrawResult struct {
	Signature   solana.Signature
	DrawAddress solana.PublicKey
}

// CreateDraw initializes a new draw account owned by the program, with the
// wallet as creator, and resyncs once the transaction is confirmed.
func (t *Tracker) CreateDraw(ctx context.Context, request CreateDrawRequest) (*CreateDrawResult, error) {
	const op = "create draw"

	identity, err := t.beginMutation(op)
	if err != nil {
		return nil, err
	}
	defer t.mutating.Store(false)

	name := request.Name
	if name == "" {
		name = DefaultDrawName
	}
	maxParticipants := request.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = DefaultMaxPlayers
	}
	ticketPrice, ok := draw.SOLToLamports(request.TicketPrice)
	if !ok {
		return nil, newError(KindInvalid, op, fmt.Errorf("%w: ticket price %s SOL", ErrInvalidDraw, request.TicketPrice))
	}

	drawKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, newError(KindSubmission, op, fmt.Errorf("generate draw account: %w", err))
	}
	drawAddress := drawKey.PublicKey()

	instruction, err := blockchain.NewInitializeInstruction(t.options.ProgramID, drawAddress, identity, blockchain.InitializeArgs{
		Name:            name,
		Description:     request.Description,
		TicketPrice:     ticketPrice,
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		return nil, newError(KindInvalid, op, fmt.Errorf("%w: %v", ErrInvalidDraw, err))
	}

	logger.Info("create draw: submitting...",
		zap.String("draw", drawAddress.String()),
		zap.String("name", name),
		zap.Uint64("ticket price", ticketPrice),
		zap.Uint32("max participants", maxParticipants),
	)

	signature, err := t.submit(ctx, op, identity, instruction, &drawKey)
	if err != nil {
		return nil, err
	}

	logger.Info("create draw: submitting... done", zap.String("signature", signature.String()))
	t.resync(ctx, identity)

	return &CreateDrawResult{Signature: signature, DrawAddress: drawAddress}, nil
}

// JoinDraw buys the wallet a ticket in the draw at address.
func (t *Tracker) JoinDraw(ctx context.Context, address solana.PublicKey) (solana.Signature, error) {
	const op = "join draw"

	identity, err := t.beginMutation(op)
	if err != nil {
		return solana.Signature{}, err
	}
	defer t.mutating.Store(false)

	if address.IsZero() {
		return solana.Signature{}, newError(KindInvalid, op, fmt.Errorf("%w: empty draw address", ErrInvalidDraw))
	}

	logger.Info("join draw: submitting...", zap.String("draw", address.String()))
	instruction := blockchain.NewJoinInstruction(t.options.ProgramID, address, identity)

	signature, err := t.submit(ctx, op, identity, instruction, nil)
	if err != nil {
		return solana.Signature{}, err
	}

	logger.Info("join draw: submitting... done", zap.String("signature", signature.String()))
	t.resync(ctx, identity)
	return signature, nil
}

// PickWinner asks the program to close the draw at address and choose its
// winner. Selection happens on chain.
func (t *Tracker) PickWinner(ctx context.Context, address solana.PublicKey) (solana.Signature, error) {
	const op = "pick winner"

	identity, err := t.beginMutation(op)
	if err != nil {
		return solana.Signature{}, err
	}
	defer t.mutating.Store(false)

	if address.IsZero() {
		return solana.Signature{}, newError(KindInvalid, op, fmt.Errorf("%w: empty draw address", ErrInvalidDraw))
	}

	logger.Info("pick winner: submitting...", zap.String("draw", address.String()))
	instruction := blockchain.NewPickWinnerInstruction(t.options.ProgramID, address, identity)

	signature, err := t.submit(ctx, op, identity, instruction, nil)
	if err != nil {
		return solana.Signature{}, err
	}

	logger.Info("pick winner: submitting... done", zap.String("signature", signature.String()))
	t.resync(ctx, identity)
	return signature, nil
}

// beginMutation resolves the wallet identity and takes the mutation flag.
// The caller releases the flag.
func (t *Tracker) beginMutation(op string) (solana.PublicKey, error) {
	if t.source == nil {
		return solana.PublicKey{}, newError(KindNotConnected, op, ErrNotConnected)
	}

	identity, err := t.Identity()
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return solana.PublicKey{}, newError(KindNotConnected, op, err)
		}
		return solana.PublicKey{}, newError(KindNotConnected, op, fmt.Errorf("%w: %v", ErrNotConnected, err))
	}

	if !t.mutating.CompareAndSwap(false, true) {
		logger.Warn(op+": rejected, another operation is in flight", zap.String("identity", identity.String()))
		return solana.PublicKey{}, newError(KindBusy, op, ErrBusy)
	}

	t.setError("")
	return identity, nil
}

// submit builds a transaction paid by identity, collects signatures, sends it
// and waits for confirmation. coSigner, when set, signs before the wallet.
func (t *Tracker) submit(ctx context.Context, op string, identity solana.PublicKey, instruction solana.Instruction, coSigner *solana.PrivateKey) (solana.Signature, error) {
	blockhash, err := t.source.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, t.mutationFailed(op, KindNetwork, fmt.Errorf("latest blockhash: %w", err))
	}

	tx, err := solana.NewTransaction([]solana.Instruction{instruction}, blockhash, solana.TransactionPayer(identity))
	if err != nil {
		return solana.Signature{}, t.mutationFailed(op, KindSubmission, fmt.Errorf("build transaction: %w", err))
	}

	if coSigner != nil {
		_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(coSigner.PublicKey()) {
				return coSigner
			}
			return nil
		})
		if err != nil {
			return solana.Signature{}, t.mutationFailed(op, KindSubmission, fmt.Errorf("co-sign transaction: %w", err))
		}
	}

	signed, err := t.wallet.SignTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, t.mutationFailed(op, KindSubmission, fmt.Errorf("wallet sign: %w", err))
	}

	signature, err := t.source.Submit(ctx, signed)
	if err != nil {
		return solana.Signature{}, t.mutationFailed(op, KindSubmission, err)
	}

	logger.Debug(op+": awaiting confirmation...", zap.String("signature", signature.String()))
	confirmCtx, cancel := context.WithTimeout(ctx, t.options.ConfirmTimeout)
	defer cancel()

	if err := t.source.AwaitConfirmation(confirmCtx, signature); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return signature, t.mutationFailed(op, KindTimeout, fmt.Errorf("confirmation of %s: %w", signature, err))
		}
		return signature, t.mutationFailed(op, KindSubmission, fmt.Errorf("confirmation of %s: %w", signature, err))
	}

	logger.Debug(op+": awaiting confirmation... done", zap.String("signature", signature.String()))
	return signature, nil
}

func (t *Tracker) mutationFailed(op string, kind ErrorKind, err error) *Error {
	failure := newError(kind, op, err)
	t.setError(fmt.Sprintf("Failed to %s: %v", op, err))
	logger.Error(op+": failed", zap.Error(failure))
	return failure
}

func (t *Tracker) resync(ctx context.Context, identity solana.PublicKey) {
	if _, err := t.Sync(ctx, identity); err != nil {
		logger.Warn("resync after draw operation failed", zap.Error(err))
	}
}
