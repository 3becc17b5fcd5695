package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Get when no row has the requested id.
var ErrNotFound = errors.New("generation record not found")

const (
	// DefaultListLimit applies when List is called with limit <= 0.
	DefaultListLimit = 20
	// MaxListLimit caps a single page.
	MaxListLimit = 100
)

// Store is the append-only audit log of pipeline runs plus its read side.
type Store interface {
	// EnsureSchema creates the generations table when it is absent. It never
	// alters an existing table.
	EnsureSchema(ctx context.Context) error
	// Record inserts one row and sets rec.ID.
	Record(ctx context.Context, rec *GenerationRecord) error
	List(ctx context.Context, limit, offset int) ([]GenerationRecord, error)
	Get(ctx context.Context, id uint) (*GenerationRecord, error)
	Count(ctx context.Context) (int64, error)
}

// GormStore implements Store on any GORM dialector.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGormStore creates a store on db.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "audit_store")),
		now:    time.Now,
	}
}

// EnsureSchema creates the table if needed. A concurrent run may create it
// between the check and the create; that case is not an error.
func (s *GormStore) EnsureSchema(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()
	if m.HasTable(&GenerationRecord{}) {
		return nil
	}
	if err := m.CreateTable(&GenerationRecord{}); err != nil {
		if m.HasTable(&GenerationRecord{}) {
			return nil
		}
		return fmt.Errorf("create generations table: %w", err)
	}
	s.logger.Info("created generations table")
	return nil
}

// Record inserts rec. Timestamp is filled with the current UTC time when zero.
func (s *GormStore) Record(ctx context.Context, rec *GenerationRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert generation record: %w", err)
	}
	return nil
}

// List returns rows newest first.
func (s *GormStore) List(ctx context.Context, limit, offset int) ([]GenerationRecord, error) {
	limit, offset = NormalizePage(limit, offset)

	var records []GenerationRecord
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list generation records: %w", err)
	}
	return records, nil
}

// Get returns the row with the given id or ErrNotFound.
func (s *GormStore) Get(ctx context.Context, id uint) (*GenerationRecord, error) {
	var rec GenerationRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation record %d: %w", id, err)
	}
	return &rec, nil
}

// Count returns the number of recorded runs.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&GenerationRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count generation records: %w", err)
	}
	return n, nil
}

// NormalizePage clamps paging parameters to [1, MaxListLimit] and offset >= 0.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
