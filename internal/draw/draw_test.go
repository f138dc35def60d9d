package draw

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func TestNormalize_MissingFieldsTakeDefaults(t *testing.T) {
	address := newKey(t)
	name := "weekly"

	record := Normalize(address, RawDraw{Name: &name})

	if !record.Address.Equals(address) {
		t.Fatalf("expected address %s, got %s", address, record.Address)
	}
	if record.Winner != nil {
		t.Fatalf("expected no winner, got %s", record.Winner)
	}
	if record.Participants == nil || len(record.Participants) != 0 {
		t.Fatalf("expected empty participants, got %v", record.Participants)
	}
	if !record.IsActive {
		t.Fatal("expected missing isActive to default to true")
	}
	if !record.IsInitialized {
		t.Fatal("expected missing isInitialized to default to true")
	}
	if !record.Creator.IsZero() {
		t.Fatalf("expected zero creator, got %s", record.Creator)
	}
	if record.Name != "weekly" || record.Description != "" {
		t.Fatalf("unexpected strings %q %q", record.Name, record.Description)
	}
	if record.TicketPrice != 0 || record.MaxParticipants != 0 || record.CreatedAt != 0 {
		t.Fatalf("expected zero numerics, got %d %d %d", record.TicketPrice, record.MaxParticipants, record.CreatedAt)
	}
}

func TestNormalize_ConvertsWideIntegers(t *testing.T) {
	t.Run("in range", func(t *testing.T) {
		record := Normalize(newKey(t), RawDraw{
			TicketPrice: big.NewInt(100_000_000),
			CreatedAt:   big.NewInt(1_700_000_000),
		})
		if record.TicketPrice != 100_000_000 {
			t.Fatalf("expected ticket price 100000000, got %d", record.TicketPrice)
		}
		if record.CreatedAt != 1_700_000_000 {
			t.Fatalf("expected createdAt 1700000000, got %d", record.CreatedAt)
		}
	})

	t.Run("saturates", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 80)
		record := Normalize(newKey(t), RawDraw{
			TicketPrice: huge,
			CreatedAt:   new(big.Int).Neg(huge),
		})
		if record.TicketPrice != math.MaxUint64 {
			t.Fatalf("expected saturated ticket price, got %d", record.TicketPrice)
		}
		if record.CreatedAt != math.MinInt64 {
			t.Fatalf("expected saturated createdAt, got %d", record.CreatedAt)
		}
	})
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	participant := newKey(t)
	winner := newKey(t)
	raw := RawDraw{Participants: []solana.PublicKey{participant}, Winner: &winner}

	record := Normalize(newKey(t), raw)
	raw.Participants[0] = solana.PublicKey{}
	winner = solana.PublicKey{}

	if !record.Participants[0].Equals(participant) {
		t.Fatal("normalized participants changed with the input slice")
	}
	if record.Winner.IsZero() {
		t.Fatal("normalized winner changed with the input pointer")
	}
}

func TestCategorize_JoinScenario(t *testing.T) {
	creator := newKey(t)
	viewer := newKey(t)
	record := Record{
		Address:         newKey(t),
		Creator:         creator,
		Participants:    []solana.PublicKey{},
		MaxParticipants: 10,
		TicketPrice:     100_000_000,
		IsActive:        true,
	}

	views := Categorize([]Record{record}, viewer)
	if len(views.Available) != 1 || len(views.Mine) != 0 || len(views.Joined) != 0 {
		t.Fatalf("expected draw to be available for viewer, got %+v", views)
	}

	views = Categorize([]Record{record}, creator)
	if len(views.Mine) != 1 || len(views.Available) != 0 || len(views.Joined) != 0 {
		t.Fatalf("expected draw to be mine for creator, got %+v", views)
	}

	record.Participants = []solana.PublicKey{viewer}
	views = Categorize([]Record{record}, viewer)
	if len(views.Joined) != 1 || len(views.Available) != 0 || len(views.Mine) != 0 {
		t.Fatalf("expected draw to be joined after joining, got %+v", views)
	}
}

func TestCategorize_ClosedDrawWithWinnerNeverAvailable(t *testing.T) {
	creator := newKey(t)
	winner := newKey(t)
	record := Record{
		Address:      newKey(t),
		Creator:      creator,
		Participants: []solana.PublicKey{winner},
		Winner:       &winner,
		IsActive:     false,
	}

	for _, viewer := range []solana.PublicKey{creator, winner, newKey(t)} {
		views := Categorize([]Record{record}, viewer)
		if len(views.Available) != 0 {
			t.Fatalf("closed draw listed as available for %s", viewer)
		}
	}
}

func TestCategorize_Partitions(t *testing.T) {
	viewer := newKey(t)
	other := newKey(t)
	winner := newKey(t)

	records := []Record{
		{Address: newKey(t), Creator: viewer, IsActive: true},
		{Address: newKey(t), Creator: viewer, IsActive: false, Participants: []solana.PublicKey{viewer}},
		{Address: newKey(t), Creator: other, IsActive: true, Participants: []solana.PublicKey{viewer}},
		{Address: newKey(t), Creator: other, IsActive: false, Participants: []solana.PublicKey{viewer}},
		{Address: newKey(t), Creator: other, IsActive: true},
		{Address: newKey(t), Creator: other, IsActive: false},
		{Address: newKey(t), Creator: other, IsActive: true, Winner: &winner},
	}

	views := Categorize(records, viewer)

	seen := map[solana.PublicKey]int{}
	for _, list := range [][]Record{views.Mine, views.Joined, views.Available} {
		for _, record := range list {
			seen[record.Address]++
		}
	}

	for _, record := range records {
		count := seen[record.Address]
		if count > 1 {
			t.Fatalf("record %s appears in %d views", record.Address, count)
		}
		if record.IsActive && count != 1 {
			t.Fatalf("active record %s appears in %d views, expected 1", record.Address, count)
		}
	}
}

func TestSnapshot_IsolatedFromInputAndRecategorizes(t *testing.T) {
	creator := newKey(t)
	viewer := newKey(t)
	records := []Record{{Address: newKey(t), Creator: creator, IsActive: true, Participants: []solana.PublicKey{}}}

	snapshot := NewSnapshot(records, creator, SourcePrimary, 0, time.Unix(10, 0))
	records[0].Name = "mutated"

	if snapshot.Draws[0].Name != "" {
		t.Fatal("snapshot shares records with its input")
	}
	if len(snapshot.Mine) != 1 {
		t.Fatalf("expected one draw in mine, got %d", len(snapshot.Mine))
	}

	forViewer := snapshot.For(viewer)
	if len(forViewer.Available) != 1 || len(forViewer.Mine) != 0 {
		t.Fatalf("expected recategorized snapshot, got %+v", forViewer.Views)
	}
	if snapshot.For(creator) != snapshot {
		t.Fatal("expected same snapshot for the same identity")
	}
	if _, ok := snapshot.Find(records[0].Address); !ok {
		t.Fatal("expected to find draw by address")
	}
}

func TestDisplayHelpers(t *testing.T) {
	creator := newKey(t)
	viewer := newKey(t)
	record := Record{Creator: creator, TicketPrice: 1_500_000_000, MaxParticipants: 1, IsActive: true}

	if got := record.TicketPriceSOL().String(); got != "1.5" {
		t.Fatalf("expected 1.5 SOL, got %s", got)
	}
	if got := record.CapacityLabel(); got != "1" {
		t.Fatalf("expected capacity 1, got %s", got)
	}
	if got := (Record{}).CapacityLabel(); got != "∞" {
		t.Fatalf("expected unbounded label, got %s", got)
	}
	if !record.CanJoin(viewer) {
		t.Fatal("expected viewer to be able to join")
	}
	if record.CanJoin(creator) {
		t.Fatal("creator must not join own draw")
	}
	if record.CanPickWinner(creator) {
		t.Fatal("cannot pick a winner without participants")
	}

	record.Participants = []solana.PublicKey{viewer}
	if !record.IsFull() {
		t.Fatal("expected draw to be full")
	}
	if record.CanJoin(newKey(t)) {
		t.Fatal("full draw must not be joinable")
	}
	if !record.CanPickWinner(creator) {
		t.Fatal("expected creator to be able to pick a winner")
	}

	short := ShortAddress(creator)
	full := creator.String()
	if short != full[:4]+"..."+full[len(full)-4:] {
		t.Fatalf("unexpected short address %s", short)
	}
}

func TestSOLToLamports(t *testing.T) {
	lamports, ok := SOLToLamports(decimal.RequireFromString("0.1234567899"))
	if !ok || lamports != 123_456_789 {
		t.Fatalf("expected 123456789 lamports, got %d (ok=%v)", lamports, ok)
	}

	if _, ok := SOLToLamports(decimal.NewFromInt(-1)); ok {
		t.Fatal("expected negative amount to be rejected")
	}

	if _, ok := SOLToLamports(decimal.RequireFromString("100000000000000")); ok {
		t.Fatal("expected overflowing amount to be rejected")
	}
}
