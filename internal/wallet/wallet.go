package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"veridraws/internal/logger"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrUnsupported  = errors.New("wallet does not support this operation")
)

// Wallet signs transactions for the current identity.
type Wallet interface {
	PublicKey() (solana.PublicKey, error)
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// KeypairWallet holds a local private key. The zero value is a disconnected
// wallet.
type KeypairWallet struct {
	key *solana.PrivateKey
}

func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: &key}
}

// LoadKeypairWallet reads a solana-keygen JSON file. An empty path yields a
// disconnected wallet.
func LoadKeypairWallet(path string) (*KeypairWallet, error) {
	if path == "" {
		logger.Debug("wallet: no keypair configured, running disconnected")
		return &KeypairWallet{}, nil
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}

	logger.Debug("wallet: keypair loaded", zap.String("public key", key.PublicKey().String()))
	return NewKeypairWallet(key), nil
}

func (w *KeypairWallet) PublicKey() (solana.PublicKey, error) {
	if w == nil || w.key == nil {
		return solana.PublicKey{}, ErrNotConnected
	}
	return w.key.PublicKey(), nil
}

// SignTransaction adds this wallet's signature and keeps signatures already
// present for other signers.
func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if w == nil || w.key == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	self := w.key.PublicKey()
	if !tx.IsSigner(self) {
		return nil, fmt.Errorf("%w: %s is not a signer of the transaction", ErrUnsupported, self)
	}

	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(self) {
			return w.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func (w *KeypairWallet) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	signed := make([]*solana.Transaction, 0, len(txs))
	for i, tx := range txs {
		out, err := w.SignTransaction(ctx, tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		signed = append(signed, out)
	}
	return signed, nil
}
