package storage

import "veridraws/internal/draw"

type Storage interface {
	// draw snapshot
	GetDraws() ([]draw.Record, error)
	ReplaceDraws(records []draw.Record) error

	// sync journal
	AddSyncRun(run *SyncRun) error
	GetLastSyncRuns(limit int) ([]*SyncRun, error)

	Close() error
}
