package blockchain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"veridraws/internal/draw"
)

var (
	ErrUnknownLayout         = errors.New("unknown account layout")
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
	ErrInvalidAccountData    = errors.New("unexpected account data")
)

type DecodeError struct {
	Layout string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Layout, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns raw account bytes into a draw record with optional fields.
type Decoder interface {
	Decode(layout string, data []byte) (*draw.RawDraw, error)
}

// BorshDecoder reads Anchor accounts: an 8 byte discriminator followed by
// Borsh encoded fields. Data that ends exactly between two fields leaves the
// remaining fields unset; data that ends inside a field is an error.
type BorshDecoder struct{}

func NewBorshDecoder() *BorshDecoder {
	return &BorshDecoder{}
}

func (d *BorshDecoder) Decode(layout string, data []byte) (*draw.RawDraw, error) {
	if layout != DrawAccountLayout {
		return nil, &DecodeError{Layout: layout, Err: ErrUnknownLayout}
	}

	raw, err := decodeDrawAccount(data)
	if err != nil {
		return nil, &DecodeError{Layout: layout, Err: err}
	}
	return raw, nil
}

func decodeDrawAccount(data []byte) (*draw.RawDraw, error) {
	if len(data) < len(DrawAccountDiscriminator) {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAccountData, len(data))
	}

	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != DrawAccountDiscriminator {
		return nil, ErrDiscriminatorMismatch
	}

	decoder := bin.NewBorshDecoder(data[8:])
	raw := &draw.RawDraw{}

	fields := []func(*bin.Decoder, *draw.RawDraw) error{
		readIsInitialized,
		readCreator,
		readName,
		readDescription,
		readTicketPrice,
		readMaxParticipants,
		readParticipants,
		readWinner,
		readIsActive,
		readCreatedAt,
	}

	for _, read := range fields {
		if !decoder.HasRemaining() {
			break
		}
		if err := read(decoder, raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
		}
	}

	return raw, nil
}

func readIsInitialized(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := readBool(decoder)
	if err != nil {
		return fmt.Errorf("is_initialized: %w", err)
	}
	raw.IsInitialized = &value
	return nil
}

func readCreator(decoder *bin.Decoder, raw *draw.RawDraw) error {
	key, err := readPublicKey(decoder)
	if err != nil {
		return fmt.Errorf("creator: %w", err)
	}
	raw.Creator = &key
	return nil
}

func readName(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := readString(decoder)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	raw.Name = &value
	return nil
}

func readDescription(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := readString(decoder)
	if err != nil {
		return fmt.Errorf("description: %w", err)
	}
	raw.Description = &value
	return nil
}

func readTicketPrice(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := decoder.ReadUint64(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("ticket_price: %w", err)
	}
	raw.TicketPrice = new(big.Int).SetUint64(value)
	return nil
}

func readMaxParticipants(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := decoder.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("max_participants: %w", err)
	}
	raw.MaxParticipants = &value
	return nil
}

func readParticipants(decoder *bin.Decoder, raw *draw.RawDraw) error {
	count, err := decoder.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("participants: %w", err)
	}
	if int(count)*solana.PublicKeyLength > decoder.Remaining() {
		return fmt.Errorf("participants: %d entries do not fit in %d bytes", count, decoder.Remaining())
	}

	participants := make([]solana.PublicKey, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := readPublicKey(decoder)
		if err != nil {
			return fmt.Errorf("participants[%d]: %w", i, err)
		}
		participants = append(participants, key)
	}
	raw.Participants = participants
	return nil
}

func readWinner(decoder *bin.Decoder, raw *draw.RawDraw) error {
	tag, err := decoder.ReadUint8()
	if err != nil {
		return fmt.Errorf("winner: %w", err)
	}
	switch tag {
	case 0:
		return nil
	case 1:
		key, err := readPublicKey(decoder)
		if err != nil {
			return fmt.Errorf("winner: %w", err)
		}
		raw.Winner = &key
		return nil
	default:
		return fmt.Errorf("winner: invalid option tag %d", tag)
	}
}

func readIsActive(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := readBool(decoder)
	if err != nil {
		return fmt.Errorf("is_active: %w", err)
	}
	raw.IsActive = &value
	return nil
}

func readCreatedAt(decoder *bin.Decoder, raw *draw.RawDraw) error {
	value, err := decoder.ReadInt64(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	raw.CreatedAt = big.NewInt(value)
	return nil
}

func readBool(decoder *bin.Decoder) (bool, error) {
	value, err := decoder.ReadUint8()
	if err != nil {
		return false, err
	}
	switch value {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool %d", value)
	}
}

func readPublicKey(decoder *bin.Decoder) (solana.PublicKey, error) {
	data, err := decoder.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(data), nil
}

func readString(decoder *bin.Decoder) (string, error) {
	length, err := decoder.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(length) > decoder.Remaining() {
		return "", fmt.Errorf("string of %d bytes exceeds %d remaining", length, decoder.Remaining())
	}
	data, err := decoder.ReadNBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
