package repository

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// RelationBulkRepository 预热专用的批量关系查询
// 每类关系一条分组聚合查询（每个主体一行，关联ID拼成串），
// 查询次数与数据量无关，避免预热时逐主体打库
type RelationBulkRepository struct {
	db *gorm.DB
}

func NewRelationBulkRepository(db *gorm.DB) *RelationBulkRepository {
	return &RelationBulkRepository{db: db}
}

// SubjectIDs 一个主体及其关联ID集合
type SubjectIDs struct {
	TenantID  uint64
	SubjectID uint64
	IDs       []uint64
}

type groupedRow struct {
	TenantID  uint64
	SubjectID uint64
	IDList    string
}

// groupConcat 按数据库方言生成聚合拼串表达式
func (r *RelationBulkRepository) groupConcat(col string) string {
	if r.db.Dialector.Name() == "postgres" {
		return "string_agg(DISTINCT " + col + "::text, ',')"
	}
	return "GROUP_CONCAT(DISTINCT " + col + ")"
}

// LoadTenantUsers 全部租户的用户ID集合
func (r *RelationBulkRepository) LoadTenantUsers(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, `
		SELECT tenant_id, tenant_id AS subject_id, `+r.groupConcat("id")+` AS id_list
		FROM users WHERE is_deleted = 0
		GROUP BY tenant_id`)
}

// LoadTenantOrgs 全部租户的组织ID集合
func (r *RelationBulkRepository) LoadTenantOrgs(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, `
		SELECT tenant_id, tenant_id AS subject_id, `+r.groupConcat("id")+` AS id_list
		FROM org_nodes WHERE is_deleted = 0
		GROUP BY tenant_id`)
}

// LoadUserOrgs 每个用户的所属部门ID集合
func (r *RelationBulkRepository) LoadUserOrgs(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, userOrgsBulkSQL(r.groupConcat("uo.org_id")))
}

// LoadOrgUsers 每个部门（含子部门）的用户ID集合
func (r *RelationBulkRepository) LoadOrgUsers(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, orgUsersBulkSQL(r.groupConcat("uo.user_id")))
}

// 涉及用户的预热查询必须与按需路径（user_repository）口径一致：
// 软删除的用户不能进缓存，否则预热数据会偏离权威存储直到TTL过期
func userOrgsBulkSQL(agg string) string {
	return `
		SELECT uo.tenant_id, uo.user_id AS subject_id, ` + agg + ` AS id_list
		FROM user_orgs uo
		JOIN users u ON u.id = uo.user_id AND u.tenant_id = uo.tenant_id
		WHERE u.is_deleted = 0
		GROUP BY uo.tenant_id, uo.user_id`
}

func orgUsersBulkSQL(agg string) string {
	return `
		SELECT e.tenant_id, e.ancestor_id AS subject_id, ` + agg + ` AS id_list
		FROM org_closure e
		JOIN user_orgs uo ON uo.org_id = e.descendant_id AND uo.tenant_id = e.tenant_id
		JOIN users u ON u.id = uo.user_id AND u.tenant_id = uo.tenant_id
		WHERE u.is_deleted = 0
		GROUP BY e.tenant_id, e.ancestor_id`
}

// LoadOrgDescendants 每个组织的后代ID集合
func (r *RelationBulkRepository) LoadOrgDescendants(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, `
		SELECT tenant_id, ancestor_id AS subject_id, `+r.groupConcat("descendant_id")+` AS id_list
		FROM org_closure WHERE depth > 0
		GROUP BY tenant_id, ancestor_id`)
}

// LoadUserDevices 每个用户绑定的设备ID集合
func (r *RelationBulkRepository) LoadUserDevices(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, `
		SELECT tenant_id, user_id AS subject_id, `+r.groupConcat("id")+` AS id_list
		FROM devices WHERE is_deleted = 0 AND user_id <> 0
		GROUP BY tenant_id, user_id`)
}

// LoadOrgDevices 每个部门（含子部门）的设备ID集合
func (r *RelationBulkRepository) LoadOrgDevices(ctx context.Context) ([]SubjectIDs, error) {
	return r.query(ctx, `
		SELECT e.tenant_id, e.ancestor_id AS subject_id, `+r.groupConcat("d.id")+` AS id_list
		FROM org_closure e
		JOIN devices d ON d.org_id = e.descendant_id AND d.tenant_id = e.tenant_id
		WHERE d.is_deleted = 0
		GROUP BY e.tenant_id, e.ancestor_id`)
}

// ListTenantIDs 全部活跃租户ID（热数据刷新按租户分批执行）
func (r *RelationBulkRepository) ListTenantIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT tenant_id FROM org_nodes WHERE is_deleted = 0`).Scan(&ids).Error
	return ids, err
}

// DeviceBinding 设备与佩戴者/部门的绑定关系
type DeviceBinding struct {
	TenantID uint64
	DeviceID uint64
	UserID   uint64
	OrgID    uint64
}

// LoadDeviceBindings 全部设备的归属（device→user 与 device→org 各一条单值关系）
func (r *RelationBulkRepository) LoadDeviceBindings(ctx context.Context) ([]DeviceBinding, error) {
	var rows []DeviceBinding
	err := r.db.WithContext(ctx).Raw(`
		SELECT tenant_id, id AS device_id, user_id, org_id
		FROM devices WHERE is_deleted = 0`).Scan(&rows).Error
	return rows, err
}

func (r *RelationBulkRepository) query(ctx context.Context, sql string) ([]SubjectIDs, error) {
	var rows []groupedRow
	if err := r.db.WithContext(ctx).Raw(sql).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]SubjectIDs, 0, len(rows))
	for _, row := range rows {
		result = append(result, SubjectIDs{
			TenantID:  row.TenantID,
			SubjectID: row.SubjectID,
			IDs:       ParseIDList(row.IDList),
		})
	}
	return result, nil
}

// ParseIDList 解析逗号拼接的ID串
func ParseIDList(s string) []uint64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
