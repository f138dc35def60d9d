package draw

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
	SourceStorage  Source = "storage"
)

// Views holds the three categorized views of a snapshot for one identity.
type Views struct {
	Mine      []Record
	Joined    []Record
	Available []Record
}

// Categorize splits records relative to identity:
//   - mine: created by identity
//   - joined: created by someone else, identity is a participant
//   - available: created by someone else, identity is not a participant, active
func Categorize(records []Record, identity solana.PublicKey) Views {
	views := Views{
		Mine:      make([]Record, 0),
		Joined:    make([]Record, 0),
		Available: make([]Record, 0),
	}

	for _, record := range records {
		switch {
		case record.Creator.Equals(identity):
			views.Mine = append(views.Mine, record)
		case record.HasParticipant(identity):
			views.Joined = append(views.Joined, record)
		case record.IsActive:
			views.Available = append(views.Available, record)
		}
	}

	return views
}

// Snapshot is the full set of draws as of one sync, categorized for Identity.
// A published snapshot is read-only: consumers must not modify it.
type Snapshot struct {
	Identity solana.PublicKey
	Draws    []Record
	Views
	Source   Source
	Skipped  int
	SyncedAt time.Time
}

// NewSnapshot copies records so later changes to the input do not leak into
// the published snapshot.
func NewSnapshot(records []Record, identity solana.PublicKey, source Source, skipped int, syncedAt time.Time) *Snapshot {
	draws := make([]Record, len(records))
	for i, record := range records {
		draws[i] = record.clone()
	}

	return &Snapshot{
		Identity: identity,
		Draws:    draws,
		Views:    Categorize(draws, identity),
		Source:   source,
		Skipped:  skipped,
		SyncedAt: syncedAt,
	}
}

// For recategorizes the same draws for another viewer.
func (s *Snapshot) For(identity solana.PublicKey) *Snapshot {
	if s.Identity.Equals(identity) {
		return s
	}
	return &Snapshot{
		Identity: identity,
		Draws:    s.Draws,
		Views:    Categorize(s.Draws, identity),
		Source:   s.Source,
		Skipped:  s.Skipped,
		SyncedAt: s.SyncedAt,
	}
}

func (s *Snapshot) Find(address solana.PublicKey) (Record, bool) {
	for _, record := range s.Draws {
		if record.Address.Equals(address) {
			return record, true
		}
	}
	return Record{}, false
}
