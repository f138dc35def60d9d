package draw

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

var (
	maxUint64 = new(big.Int).SetUint64(math.MaxUint64)
	maxInt64  = big.NewInt(math.MaxInt64)
	minInt64  = big.NewInt(math.MinInt64)
)

// Normalize turns decoder output into a fully populated Record.
//
// Missing fields take these values: IsInitialized true, Creator the zero key,
// Name and Description empty, TicketPrice 0, MaxParticipants 0, Participants
// empty, Winner absent, IsActive true, CreatedAt 0.
func Normalize(address solana.PublicKey, raw RawDraw) Record {
	record := Record{
		Address:       address,
		IsInitialized: true,
		Creator:       solana.PublicKey{},
		Participants:  []solana.PublicKey{},
		IsActive:      true,
	}

	if raw.IsInitialized != nil {
		record.IsInitialized = *raw.IsInitialized
	}
	if raw.Creator != nil {
		record.Creator = *raw.Creator
	}
	if raw.Name != nil {
		record.Name = *raw.Name
	}
	if raw.Description != nil {
		record.Description = *raw.Description
	}
	if raw.TicketPrice != nil {
		record.TicketPrice = toUint64(raw.TicketPrice)
	}
	if raw.MaxParticipants != nil {
		record.MaxParticipants = *raw.MaxParticipants
	}
	if raw.Participants != nil {
		record.Participants = append(record.Participants, raw.Participants...)
	}
	if raw.Winner != nil {
		winner := *raw.Winner
		record.Winner = &winner
	}
	if raw.IsActive != nil {
		record.IsActive = *raw.IsActive
	}
	if raw.CreatedAt != nil {
		record.CreatedAt = toInt64(raw.CreatedAt)
	}

	return record
}

// toUint64 saturates at the uint64 bounds.
func toUint64(value *big.Int) uint64 {
	if value.Sign() < 0 {
		return 0
	}
	if value.Cmp(maxUint64) > 0 {
		return math.MaxUint64
	}
	return value.Uint64()
}

// toInt64 saturates at the int64 bounds.
func toInt64(value *big.Int) int64 {
	if value.Cmp(maxInt64) > 0 {
		return math.MaxInt64
	}
	if value.Cmp(minInt64) < 0 {
		return math.MinInt64
	}
	return value.Int64()
}
