package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rollbook/pkg/contracts/domain"
)

// ErrNotFound is returned when no leave request has the given id.
var ErrNotFound = errors.New("leave request not found")

// Record is the persisted form of a leave request.
type Record struct {
	ID          string `gorm:"primaryKey;size:36"`
	StudentName string `gorm:"index;size:128;not null"`
	LeaveDate   string `gorm:"index;size:10;not null"`
	LeaveType   string `gorm:"size:32;not null"`
	Reason      string `gorm:"size:1000"`
	Status      string `gorm:"index;size:16;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DecidedAt   *time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "leave_requests" }

func (r Record) toDomain() domain.LeaveRequest {
	return domain.LeaveRequest{
		ID:          r.ID,
		StudentName: r.StudentName,
		LeaveDate:   r.LeaveDate,
		LeaveType:   r.LeaveType,
		Reason:      r.Reason,
		Status:      domain.LeaveStatus(r.Status),
		SubmittedAt: r.CreatedAt,
		DecidedAt:   r.DecidedAt,
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	StudentName string
	Status      domain.LeaveStatus
}

// Repository persists leave requests.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeaveStatus, decidedAt time.Time) error
	CountByStatus(ctx context.Context) (map[domain.LeaveStatus]int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// OpenSQLite opens (creating if needed) the sqlite database at dsn and
// migrates the leave schema.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate leave schema: %w", err)
	}
	return db, nil
}

func (r *gormRepository) Create(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepository) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := r.db.WithContext(ctx).Model(&Record{})
	if filter.StudentName != "" {
		query = query.Where("student_name = ?", filter.StudentName)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var records []Record
	if err := query.Order("created_at ASC").Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *gormRepository) UpdateStatus(ctx context.Context, id string, status domain.LeaveStatus, decidedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Record{}).
		Where("id = ? AND status = ?", id, string(domain.LeaveStatusPending)).
		Updates(map[string]interface{}{"status": string(status), "decided_at": decidedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// lost a race with another decision, or the row is gone
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyDecided
}

func (r *gormRepository) CountByStatus(ctx context.Context) (map[domain.LeaveStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.LeaveStatus]int64, len(rows))
	for _, row := range rows {
		counts[domain.LeaveStatus(row.Status)] = row.Count
	}
	return counts, nil
}
