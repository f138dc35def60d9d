package storage

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"veridraws/internal/draw"
	"veridraws/internal/logger"
)

type SqliteStorage struct {
	db *gorm.DB
}

func NewSqliteStorage(path string) (*SqliteStorage, error) {

	logger.Debug("initializing database...", zap.String("path", path))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	err = db.AutoMigrate(
		&DrawState{},
		&SyncRun{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}

	logger.Debug("initializing database... done")
	return &SqliteStorage{
		db: db,
	}, nil
}

func (s *SqliteStorage) GetDraws() ([]draw.Record, error) {
	logger.Debug("getting persisted draws...")

	var states []*DrawState
	if err := s.db.Order("position asc").Find(&states).Error; err != nil {
		return nil, err
	}

	records := make([]draw.Record, 0, len(states))
	for _, state := range states {
		record, err := state.toRecord()
		if err != nil {
			logger.Warn("skipping persisted draw", zap.String("address", state.Address), zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	logger.Debug("getting persisted draws... done", zap.Int("draws", len(records)))
	return records, nil
}

// ReplaceDraws swaps the persisted snapshot for records in one transaction.
func (s *SqliteStorage) ReplaceDraws(records []draw.Record) error {
	logger.Debug("replacing persisted draws...", zap.Int("draws", len(records)))

	states := make([]*DrawState, len(records))
	for i, record := range records {
		states[i] = fromRecord(record, i)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DrawState{}).Error; err != nil {
			return err
		}

		if len(states) == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			UpdateAll: true,
		}).CreateInBatches(states, 100).Error
	})
	if err != nil {
		return err
	}

	logger.Debug("replacing persisted draws... done")
	return nil
}

func (s *SqliteStorage) AddSyncRun(run *SyncRun) error {
	return s.db.Create(run).Error
}

func (s *SqliteStorage) GetLastSyncRuns(limit int) ([]*SyncRun, error) {

	var runs []*SyncRun
	err := s.db.Order("id desc").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}

	return runs, nil
}

func (s *SqliteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromRecord(record draw.Record, position int) *DrawState {
	participants := make([]string, len(record.Participants))
	for i, participant := range record.Participants {
		participants[i] = participant.String()
	}

	var winner *string
	if record.Winner != nil {
		encoded := record.Winner.String()
		winner = &encoded
	}

	return &DrawState{
		Address:         record.Address.String(),
		IsInitialized:   record.IsInitialized,
		Creator:         record.Creator.String(),
		Name:            record.Name,
		Description:     record.Description,
		TicketPrice:     record.TicketPrice,
		MaxParticipants: record.MaxParticipants,
		Participants:    participants,
		Winner:          winner,
		IsActive:        record.IsActive,
		CreatedAtUnix:   record.CreatedAt,
		Position:        position,
	}
}

func (s *DrawState) toRecord() (draw.Record, error) {
	address, err := solana.PublicKeyFromBase58(s.Address)
	if err != nil {
		return draw.Record{}, fmt.Errorf("address: %w", err)
	}

	creator, err := solana.PublicKeyFromBase58(s.Creator)
	if err != nil {
		return draw.Record{}, fmt.Errorf("creator: %w", err)
	}

	participants := make([]solana.PublicKey, len(s.Participants))
	for i, encoded := range s.Participants {
		participants[i], err = solana.PublicKeyFromBase58(encoded)
		if err != nil {
			return draw.Record{}, fmt.Errorf("participant %d: %w", i, err)
		}
	}

	var winner *solana.PublicKey
	if s.Winner != nil {
		key, err := solana.PublicKeyFromBase58(*s.Winner)
		if err != nil {
			return draw.Record{}, fmt.Errorf("winner: %w", err)
		}
		winner = &key
	}

	return draw.Record{
		Address:         address,
		IsInitialized:   s.IsInitialized,
		Creator:         creator,
		Name:            s.Name,
		Description:     s.Description,
		TicketPrice:     s.TicketPrice,
		MaxParticipants: s.MaxParticipants,
		Participants:    participants,
		Winner:          winner,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAtUnix,
	}, nil
}
