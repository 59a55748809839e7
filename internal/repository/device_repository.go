package repository

import (
	"context"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FindByID 根据ID查找设备
func (r *DeviceRepository) FindByID(ctx context.Context, deviceID, tenantID uint64) (*model.Device, error) {
	var device model.Device
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ? AND is_deleted = 0", deviceID, tenantID).
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// FindIDsByUser 查找用户绑定的全部设备ID
func (r *DeviceRepository) FindIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("user_id = ? AND tenant_id = ? AND is_deleted = 0", userID, tenantID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// FindIDsUnderOrg 查找部门及其全部子部门下的设备ID（闭包表JOIN）
func (r *DeviceRepository) FindIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Table("devices AS d").
		Joins("JOIN org_closure e ON e.descendant_id = d.org_id AND e.tenant_id = d.tenant_id").
		Where("e.ancestor_id = ? AND e.tenant_id = ? AND d.is_deleted = 0", orgID, tenantID).
		Order("d.id ASC").
		Pluck("d.id", &ids).Error
	return ids, err
}

// FindIDsByUsers 批量查找多个用户的设备，按用户分组返回
// 一次IN查询覆盖所有未命中缓存的用户，查询次数与用户数无关
func (r *DeviceRepository) FindIDsByUsers(ctx context.Context, userIDs []uint64, tenantID uint64) (map[uint64][]uint64, error) {
	var rows []model.Device
	err := r.db.WithContext(ctx).
		Select("id", "user_id").
		Where("tenant_id = ? AND user_id IN ? AND is_deleted = 0", tenantID, userIDs).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[uint64][]uint64, len(userIDs))
	for _, d := range rows {
		result[d.UserID] = append(result[d.UserID], d.ID)
	}
	return result, nil
}
