package draw

import (
	"math/big"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	lamportsExponent = 9
	unboundedLabel   = "∞"
)

var lamportsPerSOL = decimal.New(1, lamportsExponent)

// LamportsToSOL converts a lamport amount to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsExponent)
}

// SOLToLamports converts SOL to lamports, rounding toward zero.
func SOLToLamports(sol decimal.Decimal) (uint64, bool) {
	if sol.IsNegative() {
		return 0, false
	}
	lamports := sol.Mul(lamportsPerSOL).Floor()
	if !lamports.BigInt().IsUint64() {
		return 0, false
	}
	return lamports.BigInt().Uint64(), true
}

func (r Record) TicketPriceSOL() decimal.Decimal {
	return LamportsToSOL(r.TicketPrice)
}

// CapacityLabel renders the participant cap, "∞" when unbounded.
func (r Record) CapacityLabel() string {
	if r.MaxParticipants == 0 {
		return unboundedLabel
	}
	return strconv.FormatUint(uint64(r.MaxParticipants), 10)
}

// CanJoin is a presentation hint; the program decides admission.
func (r Record) CanJoin(viewer solana.PublicKey) bool {
	return r.IsActive &&
		!r.HasWinner() &&
		!r.Creator.Equals(viewer) &&
		!r.HasParticipant(viewer) &&
		!r.IsFull()
}

// CanPickWinner is a presentation hint; the program decides.
func (r Record) CanPickWinner(viewer solana.PublicKey) bool {
	return r.Creator.Equals(viewer) &&
		r.IsActive &&
		!r.HasWinner() &&
		len(r.Participants) > 0
}

// ShortAddress renders a key as its first and last four characters.
func ShortAddress(key solana.PublicKey) string {
	encoded := key.String()
	if len(encoded) <= 8 {
		return encoded
	}
	return encoded[:4] + "..." + encoded[len(encoded)-4:]
}
