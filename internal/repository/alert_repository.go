package repository

import (
	"context"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// FindActiveByUser 查找用户当前未关闭的告警
func (r *AlertRepository) FindActiveByUser(ctx context.Context, userID, tenantID uint64) ([]model.Alert, error) {
	var alerts []model.Alert
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND status = ?", userID, tenantID, model.AlertStatusActive).
		Order("level DESC, created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// FindActiveByTenant 查找租户内全部未关闭告警，按用户分组
// 预热用：一次查询覆盖全部用户
func (r *AlertRepository) FindActiveByTenant(ctx context.Context, tenantID uint64) (map[uint64][]model.Alert, error) {
	var alerts []model.Alert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, model.AlertStatusActive).
		Order("user_id ASC, level DESC, created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[uint64][]model.Alert)
	for _, a := range alerts {
		result[a.UserID] = append(result[a.UserID], a)
	}
	return result, nil
}
