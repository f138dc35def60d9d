package blockchain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
)

type drawAccountFixture struct {
	creator      solana.PublicKey
	name         string
	description  string
	ticketPrice  uint64
	maxPlayers   uint32
	participants []solana.PublicKey
	winner       *solana.PublicKey
	isActive     bool
	createdAt    int64
}

// encode writes the fixture as the program lays it out and returns the byte
// offset at which each field ends.
func (f drawAccountFixture) encode() ([]byte, []int) {
	buf := new(bytes.Buffer)
	var ends []int
	mark := func() { ends = append(ends, buf.Len()) }

	buf.Write(DrawAccountDiscriminator[:])
	buf.WriteByte(1)
	mark()
	buf.Write(f.creator[:])
	mark()
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(f.name)))
	buf.WriteString(f.name)
	mark()
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(f.description)))
	buf.WriteString(f.description)
	mark()
	_ = binary.Write(buf, binary.LittleEndian, f.ticketPrice)
	mark()
	_ = binary.Write(buf, binary.LittleEndian, f.maxPlayers)
	mark()
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(f.participants)))
	for _, participant := range f.participants {
		buf.Write(participant[:])
	}
	mark()
	if f.winner == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		buf.Write(f.winner[:])
	}
	mark()
	if f.isActive {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	mark()
	_ = binary.Write(buf, binary.LittleEndian, f.createdAt)
	mark()

	return buf.Bytes(), ends
}

func TestBorshDecoder_FullAccount(t *testing.T) {
	winner := solana.NewWallet().PublicKey()
	fixture := drawAccountFixture{
		creator:      solana.NewWallet().PublicKey(),
		name:         "weekly",
		description:  "weekly draw",
		ticketPrice:  100_000_000,
		maxPlayers:   10,
		participants: []solana.PublicKey{winner, solana.NewWallet().PublicKey()},
		winner:       &winner,
		isActive:     false,
		createdAt:    1_700_000_000,
	}
	data, _ := fixture.encode()
	data = append(data, make([]byte, 16)...)

	raw, err := NewBorshDecoder().Decode(DrawAccountLayout, data)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	if raw.Creator == nil || !raw.Creator.Equals(fixture.creator) {
		t.Fatalf("unexpected creator %v", raw.Creator)
	}
	if *raw.Name != "weekly" || *raw.Description != "weekly draw" {
		t.Fatalf("unexpected strings %q %q", *raw.Name, *raw.Description)
	}
	if raw.TicketPrice.Uint64() != 100_000_000 {
		t.Fatalf("unexpected ticket price %s", raw.TicketPrice)
	}
	if *raw.MaxParticipants != 10 {
		t.Fatalf("unexpected max participants %d", *raw.MaxParticipants)
	}
	if len(raw.Participants) != 2 || !raw.Participants[0].Equals(winner) {
		t.Fatalf("unexpected participants %v", raw.Participants)
	}
	if raw.Winner == nil || !raw.Winner.Equals(winner) {
		t.Fatalf("unexpected winner %v", raw.Winner)
	}
	if raw.IsActive == nil || *raw.IsActive {
		t.Fatal("expected inactive draw")
	}
	if raw.CreatedAt.Int64() != 1_700_000_000 {
		t.Fatalf("unexpected createdAt %s", raw.CreatedAt)
	}
}

func TestBorshDecoder_TruncatedAtFieldBoundaryLeavesFieldsUnset(t *testing.T) {
	fixture := drawAccountFixture{
		creator:     solana.NewWallet().PublicKey(),
		name:        "partial",
		ticketPrice: 5,
		maxPlayers:  3,
	}
	data, ends := fixture.encode()

	// keep everything up to and including max_participants
	raw, err := NewBorshDecoder().Decode(DrawAccountLayout, data[:ends[5]])
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if raw.MaxParticipants == nil || *raw.MaxParticipants != 3 {
		t.Fatalf("expected max participants to be decoded, got %v", raw.MaxParticipants)
	}
	if raw.Participants != nil || raw.Winner != nil || raw.IsActive != nil || raw.CreatedAt != nil {
		t.Fatalf("expected trailing fields to be unset, got %+v", raw)
	}
}

func TestBorshDecoder_Errors(t *testing.T) {
	fixture := drawAccountFixture{creator: solana.NewWallet().PublicKey(), name: "broken"}
	data, ends := fixture.encode()

	t.Run("unknown layout", func(t *testing.T) {
		_, err := NewBorshDecoder().Decode("TicketAccount", data)
		if !errors.Is(err, ErrUnknownLayout) {
			t.Fatalf("expected ErrUnknownLayout, got %v", err)
		}
	})

	t.Run("short buffer", func(t *testing.T) {
		_, err := NewBorshDecoder().Decode(DrawAccountLayout, data[:4])
		if !errors.Is(err, ErrInvalidAccountData) {
			t.Fatalf("expected ErrInvalidAccountData, got %v", err)
		}
	})

	t.Run("foreign discriminator", func(t *testing.T) {
		foreign := append([]byte(nil), data...)
		other := AccountDiscriminator("TicketAccount")
		copy(foreign, other[:])
		_, err := NewBorshDecoder().Decode(DrawAccountLayout, foreign)
		if !errors.Is(err, ErrDiscriminatorMismatch) {
			t.Fatalf("expected ErrDiscriminatorMismatch, got %v", err)
		}
	})

	t.Run("ends inside a field", func(t *testing.T) {
		_, err := NewBorshDecoder().Decode(DrawAccountLayout, data[:ends[2]-2])
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if decodeErr.Layout != DrawAccountLayout {
			t.Fatalf("unexpected layout %q", decodeErr.Layout)
		}
	})

	t.Run("invalid winner tag", func(t *testing.T) {
		corrupt := append([]byte(nil), data...)
		corrupt[ends[6]] = 7
		_, err := NewBorshDecoder().Decode(DrawAccountLayout, corrupt)
		if !errors.Is(err, ErrInvalidAccountData) {
			t.Fatalf("expected ErrInvalidAccountData, got %v", err)
		}
	})
}

func TestInstructions(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	drawAccount := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()

	t.Run("initialize", func(t *testing.T) {
		instruction, err := NewInitializeInstruction(programID, drawAccount, user, InitializeArgs{
			Name:            "ab",
			Description:     "",
			TicketPrice:     42,
			MaxParticipants: 100,
		})
		if err != nil {
			t.Fatalf("NewInitializeInstruction returned error: %v", err)
		}

		data, err := instruction.Data()
		if err != nil {
			t.Fatalf("instruction data: %v", err)
		}

		expected := new(bytes.Buffer)
		disc := InstructionDiscriminator("initialize")
		expected.Write(disc[:])
		_ = binary.Write(expected, binary.LittleEndian, uint32(2))
		expected.WriteString("ab")
		_ = binary.Write(expected, binary.LittleEndian, uint32(0))
		_ = binary.Write(expected, binary.LittleEndian, uint64(42))
		_ = binary.Write(expected, binary.LittleEndian, uint32(100))

		if !bytes.Equal(data, expected.Bytes()) {
			t.Fatalf("unexpected instruction data %x, expected %x", data, expected.Bytes())
		}

		accounts := instruction.Accounts()
		if len(accounts) != 4 || !accounts[0].IsSigner || !accounts[1].IsSigner {
			t.Fatalf("expected draw account and user to sign, got %+v", accounts)
		}
		if !instruction.ProgramID().Equals(programID) {
			t.Fatalf("unexpected program id %s", instruction.ProgramID())
		}
	})

	t.Run("join and pick winner", func(t *testing.T) {
		for name, instruction := range map[string]solana.Instruction{
			"join":        NewJoinInstruction(programID, drawAccount, user),
			"pick_winner": NewPickWinnerInstruction(programID, drawAccount, user),
		} {
			data, err := instruction.Data()
			if err != nil {
				t.Fatalf("%s data: %v", name, err)
			}
			disc := InstructionDiscriminator(name)
			if !bytes.Equal(data, disc[:]) {
				t.Fatalf("%s: unexpected data %x", name, data)
			}
			if !instruction.Accounts()[1].PublicKey.Equals(user) || !instruction.Accounts()[1].IsSigner {
				t.Fatalf("%s: expected user to sign", name)
			}
		}
	})
}
