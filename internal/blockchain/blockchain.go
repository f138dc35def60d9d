package blockchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const DrawAccountLayout = "DrawAccount"

const (
	initializeInstructionName = "initialize"
	joinInstructionName       = "join"
	pickWinnerInstructionName = "pick_winner"
)

var DrawAccountDiscriminator = AccountDiscriminator(DrawAccountLayout)

func AccountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func InstructionDiscriminator(name string) [8]byte {
	return discriminator("global:" + name)
}

func discriminator(preimage string) [8]byte {
	hash := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

type InitializeArgs struct {
	Name            string
	Description     string
	TicketPrice     uint64
	MaxParticipants uint32
}

func NewInitializeInstruction(programID, drawAccount, user solana.PublicKey, args InitializeArgs) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)

	disc := InstructionDiscriminator(initializeInstructionName)
	if err := encoder.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	if err := writeString(encoder, args.Name); err != nil {
		return nil, err
	}
	if err := writeString(encoder, args.Description); err != nil {
		return nil, err
	}
	if err := encoder.WriteUint64(args.TicketPrice, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := encoder.WriteUint32(args.MaxParticipants, binary.LittleEndian); err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(drawAccount, true, true),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return solana.NewInstruction(programID, accounts, buf.Bytes()), nil
}

func NewJoinInstruction(programID, drawAccount, user solana.PublicKey) solana.Instruction {
	disc := InstructionDiscriminator(joinInstructionName)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(drawAccount, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(programID, accounts, disc[:])
}

// NewPickWinnerInstruction only asks the program to close the draw; the
// program owns winner selection.
func NewPickWinnerInstruction(programID, drawAccount, user solana.PublicKey) solana.Instruction {
	disc := InstructionDiscriminator(pickWinnerInstructionName)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(drawAccount, true, false),
		solana.NewAccountMeta(user, true, true),
	}

	return solana.NewInstruction(programID, accounts, disc[:])
}

func writeString(encoder *bin.Encoder, value string) error {
	if err := encoder.WriteUint32(uint32(len(value)), binary.LittleEndian); err != nil {
		return err
	}
	return encoder.WriteBytes([]byte(value), false)
}
