package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/calvinmclean/dispenser"
	"github.com/calvinmclean/dispenser/link"
)

// ErrNoSession is returned when recording before a session was started
var ErrNoSession = errors.New("no session started")

// Session groups the readings and commands of one use of the dispenser
type Session struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	StartedAt time.Time `gorm:"not null;index"`

	Readings []Reading `gorm:"foreignKey:SessionID;references:ID"`
	Commands []Command `gorm:"foreignKey:SessionID;references:ID"`
}

// Reading is a stored weight and temperature reading
type Reading struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   string    `gorm:"not null;index"`
	Time        time.Time `gorm:"not null;index"`
	Weight      float32
	Temperature float32
}

// Command is a stored command sent to the dispenser
type Command struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"not null;index"`
	Time      time.Time `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	Value     int
}

// Store keeps readings and commands in a SQLite database. It records into the session started last
type Store struct {
	db *gorm.DB

	mu      sync.RWMutex
	session *Session
}

var _ link.Recorder = (*Store)(nil)

// Open opens or creates the database at path and migrates the schema
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening history database: %w", err)
	}

	// sqlite allows one writer; readings and commands are recorded from different goroutines
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error opening history database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&Session{}, &Reading{}, &Command{})
	if err != nil {
		return nil, fmt.Errorf("error migrating history database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartSession creates a new session that receives all following records
func (s *Store) StartSession(ctx context.Context, name string, now time.Time) (Session, error) {
	session := Session{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: now,
	}

	err := s.db.WithContext(ctx).Create(&session).Error
	if err != nil {
		return Session{}, fmt.Errorf("error creating session: %w", err)
	}

	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()

	return session, nil
}

// CurrentSession returns the session being recorded
func (s *Store) CurrentSession() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// RecordReading implements link.Recorder
func (s *Store) RecordReading(ctx context.Context, r dispenser.Reading, now time.Time) error {
	session, ok := s.CurrentSession()
	if !ok {
		return ErrNoSession
	}

	return s.db.WithContext(ctx).Create(&Reading{
		SessionID:   session.ID,
		Time:        now,
		Weight:      r.Weight,
		Temperature: r.Temperature,
	}).Error
}

// RecordCommand implements link.Recorder
func (s *Store) RecordCommand(ctx context.Context, c link.Command) error {
	session, ok := s.CurrentSession()
	if !ok {
		return ErrNoSession
	}

	return s.db.WithContext(ctx).Create(&Command{
		SessionID: session.ID,
		Time:      c.Time,
		Name:      c.Name,
		Value:     c.Value,
	}).Error
}

// Sessions returns all sessions, newest first
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).Order("started_at DESC").Find(&sessions).Error
	return sessions, err
}

// Session returns one session with its readings and commands
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	var session Session
	err := s.db.WithContext(ctx).
		Preload("Readings", func(db *gorm.DB) *gorm.DB { return db.Order("time ASC, id ASC") }).
		Preload("Commands", func(db *gorm.DB) *gorm.DB { return db.Order("time ASC, id ASC") }).
		First(&session, "id = ?", id).Error
	return session, err
}

// Readings returns the readings of a session in the order they arrived
func (s *Store) Readings(ctx context.Context, sessionID string) ([]Reading, error) {
	var readings []Reading
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("time ASC, id ASC").Find(&readings).Error
	return readings, err
}

// Commands returns the commands of a session in the order they were sent
func (s *Store) Commands(ctx context.Context, sessionID string) ([]Command, error) {
	var commands []Command
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("time ASC, id ASC").Find(&commands).Error
	return commands, err
}
