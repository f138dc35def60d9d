package draw

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Record is one draw account as known to the client, with every field set.
type Record struct {
	Address         solana.PublicKey
	IsInitialized   bool
	Creator         solana.PublicKey
	Name            string
	Description     string
	TicketPrice     uint64 // lamports
	MaxParticipants uint32 // 0 is shown as unbounded, never used for admission
	Participants    []solana.PublicKey
	Winner          *solana.PublicKey
	IsActive        bool
	CreatedAt       int64 // unix seconds
}

// RawDraw is what the account decoder hands back. A nil field was not
// present in the account data.
type RawDraw struct {
	IsInitialized   *bool
	Creator         *solana.PublicKey
	Name            *string
	Description     *string
	TicketPrice     *big.Int
	MaxParticipants *uint32
	Participants    []solana.PublicKey
	Winner          *solana.PublicKey
	IsActive        *bool
	CreatedAt       *big.Int
}

func (r Record) HasParticipant(identity solana.PublicKey) bool {
	for _, participant := range r.Participants {
		if participant.Equals(identity) {
			return true
		}
	}
	return false
}

func (r Record) HasWinner() bool {
	return r.Winner != nil
}

// IsFull reports whether a bounded draw reached its capacity.
func (r Record) IsFull() bool {
	return r.MaxParticipants > 0 && len(r.Participants) >= int(r.MaxParticipants)
}

// clone returns a copy that shares nothing mutable with r.
func (r Record) clone() Record {
	out := r
	if r.Participants != nil {
		out.Participants = append([]solana.PublicKey(nil), r.Participants...)
	}
	if r.Winner != nil {
		winner := *r.Winner
		out.Winner = &winner
	}
	return out
}
