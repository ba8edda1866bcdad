package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusflow/campus-flow-api/model"
	"gorm.io/gorm"
)

var ErrAuditNotFound = errors.New("audit log not found")

type AuditFilter struct {
	Action   string
	Target   string
	AdminID  uint
	TargetID uint
	Page     int
	Limit    int
}

// AuditEntry adds the acting admin's name to a log row
type AuditEntry struct {
	model.AdminAuditLog
	AdminName string `json:"admin_name"`
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// List returns newest first, with the total matching count
func (s *AuditService) List(ctx context.Context, f AuditFilter) ([]AuditEntry, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	q := s.db.WithContext(ctx).Table("admin_audit_logs").
		Joins("LEFT JOIN profiles ON profiles.id = admin_audit_logs.admin_id")
	if f.Action != "" {
		q = q.Where("admin_audit_logs.action = ?", f.Action)
	}
	if f.Target != "" {
		q = q.Where("admin_audit_logs.target = ?", f.Target)
	}
	if f.AdminID != 0 {
		q = q.Where("admin_audit_logs.admin_id = ?", f.AdminID)
	}
	if f.TargetID != 0 {
		q = q.Where("admin_audit_logs.target_id = ?", f.TargetID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	entries := []AuditEntry{}
	err := q.Select("admin_audit_logs.*, COALESCE(profiles.full_name, '') AS admin_name").
		Order("admin_audit_logs.created_at DESC, admin_audit_logs.id DESC").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Scan(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, total, nil
}

func (s *AuditService) Get(ctx context.Context, id uint) (*model.AdminAuditLog, error) {
	var entry model.AdminAuditLog
	if err := s.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuditNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Record writes one entry outside any service transaction. Catalog CRUD uses
// it through the audit middleware.
func (s *AuditService) Record(ctx context.Context, entry *model.AdminAuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
