package model

import (
	"time"
)

// 组织节点状态
const (
	OrgStatusInactive = 0 // 停用
	OrgStatusActive   = 1 // 启用
)

// OrgNode 组织节点（租户 → 部门 → 子部门）
type OrgNode struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`                 // 组织名称
	Code      string    `json:"code" gorm:"type:varchar(100);index;not null"`           // 组织标识符
	ParentID  uint64    `json:"parentId" gorm:"index;default:0"`                        // 父级组织ID（0表示租户根节点）
	TenantID  uint64    `json:"tenantId" gorm:"index:idx_org_tenant;not null"`          // 所属租户
	Level     int       `json:"level" gorm:"default:0"`                                 // 距租户根的层级（根为0）
	Status    int       `json:"status" gorm:"default:1;index"`                          // 状态：1启用 0停用
	SortOrder int       `json:"sortOrder" gorm:"default:0"`                             // 排序顺序
	IsDeleted int       `json:"isDeleted" gorm:"default:0;index:idx_org_tenant"`        // 软删除标记
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	Children []OrgNode `json:"children,omitempty" gorm:"-"` // 子组织（不存储）
}

func (OrgNode) TableName() string {
	return "org_nodes"
}

// CreateOrgNodeRequest 创建组织请求
type CreateOrgNodeRequest struct {
	Name      string `json:"name" binding:"required"`
	Code      string `json:"code" binding:"required"`
	ParentID  uint64 `json:"parentId"` // 0表示创建租户根节点
	SortOrder int    `json:"sortOrder"`
}

// BatchCreateOrgNodesRequest 批量创建组织请求
// 调用方必须保证父节点排在子节点之前（按层级升序）
type BatchCreateOrgNodesRequest struct {
	Nodes []CreateOrgNodeRequest `json:"nodes" binding:"required,min=1"`
}

// MoveOrgNodeRequest 移动组织子树请求
type MoveOrgNodeRequest struct {
	NewParentID uint64 `json:"newParentId" binding:"required"`
}
