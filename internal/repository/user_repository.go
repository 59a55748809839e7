package repository

import (
	"context"

	"github.com/BrunoGao/release-sub004/internal/model"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindOrgIDsByUser 查找用户所属的全部部门ID（含兼职部门）
func (r *UserRepository) FindOrgIDsByUser(ctx context.Context, userID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.UserOrg{}).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Order("org_id ASC").
		Pluck("org_id", &ids).Error
	return ids, err
}

// FindUserIDsUnderOrg 查找部门及其全部子部门下的用户ID
// 通过闭包表一次JOIN完成，不做递归查询
func (r *UserRepository) FindUserIDsUnderOrg(ctx context.Context, orgID, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Table("user_orgs AS uo").
		Joins("JOIN org_closure e ON e.descendant_id = uo.org_id AND e.tenant_id = uo.tenant_id").
		Joins("JOIN users u ON u.id = uo.user_id AND u.tenant_id = uo.tenant_id").
		Where("e.ancestor_id = ? AND e.tenant_id = ? AND u.is_deleted = 0", orgID, tenantID).
		Distinct().
		Order("uo.user_id ASC").
		Pluck("uo.user_id", &ids).Error
	return ids, err
}

// FindIDsByTenant 查找租户全部用户ID
func (r *UserRepository) FindIDsByTenant(ctx context.Context, tenantID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("tenant_id = ? AND is_deleted = 0", tenantID).
		Pluck("id", &ids).Error
	return ids, err
}

// CountUsersUnderOrg 统计部门及子部门下的用户数
func (r *UserRepository) CountUsersUnderOrg(ctx context.Context, orgID, tenantID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_orgs AS uo").
		Joins("JOIN org_closure e ON e.descendant_id = uo.org_id AND e.tenant_id = uo.tenant_id").
		Joins("JOIN users u ON u.id = uo.user_id AND u.tenant_id = uo.tenant_id").
		Where("e.ancestor_id = ? AND e.tenant_id = ? AND u.is_deleted = 0", orgID, tenantID).
		Distinct("uo.user_id").
		Count(&count).Error
	return count, err
}
