package model

import (
	"time"
)

// User 终端用户（佩戴设备的人员）
type User struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  uint64    `json:"tenantId" gorm:"index;not null"`
	OrgID     uint64    `json:"orgId" gorm:"index;not null"` // 主属部门
	UserName  string    `json:"userName" gorm:"type:varchar(50);index;not null"`
	RealName  string    `json:"realName" gorm:"type:varchar(100)"`
	Phone     string    `json:"phone" gorm:"type:varchar(20)"`
	Status    int       `json:"status" gorm:"default:1;index"` // 1启用 0停用
	IsDeleted int       `json:"isDeleted" gorm:"default:0;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// UserOrg 用户-部门关联（支持一人多部门；硬删除组织时级联清除）
type UserOrg struct {
	ID       uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID   uint64 `json:"userId" gorm:"uniqueIndex:uk_user_org,priority:2;not null"`
	OrgID    uint64 `json:"orgId" gorm:"uniqueIndex:uk_user_org,priority:3;index;not null"`
	TenantID uint64 `json:"tenantId" gorm:"uniqueIndex:uk_user_org,priority:1;not null"`
}

func (UserOrg) TableName() string {
	return "user_orgs"
}
