package storage

import "time"

type DrawState struct {
	Address         string   `gorm:"primaryKey"`
	IsInitialized   bool     `gorm:"not null"`
	Creator         string   `gorm:"index;not null"`
	Name            string   `gorm:"not null;default:''"`
	Description     string   `gorm:"not null;default:''"`
	TicketPrice     uint64   `gorm:"not null;default:0"`
	MaxParticipants uint32   `gorm:"not null;default:0"`
	Participants    []string `gorm:"serializer:json"`
	Winner          *string
	IsActive        bool  `gorm:"not null"`
	CreatedAtUnix   int64 `gorm:"column:created_at_unix;not null;default:0"`
	Position        int   `gorm:"not null"`
}

type SyncRun struct {
	ID         int64     `gorm:"primaryKey"`
	Identity   string    `gorm:"index"`
	Source     string    `gorm:"not null"`
	Records    int       `gorm:"default:0"`
	Skipped    int       `gorm:"default:0"`
	Error      string    `gorm:"default:''"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt time.Time `gorm:"not null"`
}
