package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"veridraws/internal/blockchain"
	"veridraws/internal/logger"
)

var ErrNotAProgram = errors.New("account is not an executable program")

// VerifyProgram checks that the configured program id points at a deployed
// program before any draw is queried.
func (t *Tracker) VerifyProgram(ctx context.Context) error {
	if t.source == nil {
		return newError(KindNotConnected, "verify program", ErrNotConnected)
	}

	logger.Debug("verify program: fetching program account...", zap.String("program", t.options.ProgramID.String()))

	info, err := Retry(ctx, t.options.Retry, func() (*blockchain.AccountInfo, error) {
		return t.source.AccountInfo(ctx, t.options.ProgramID)
	})
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return newError(KindInvalid, "verify program", err)
	}
	if err != nil {
		return newError(KindNetwork, "verify program", err)
	}

	if !info.Executable {
		return newError(KindInvalid, "verify program", fmt.Errorf("%w: %s", ErrNotAProgram, t.options.ProgramID))
	}

	logger.Debug("verify program: fetching program account... done",
		zap.String("loader", info.Owner.String()),
		zap.Uint64("balance", info.Lamports),
	)
	return nil
}
