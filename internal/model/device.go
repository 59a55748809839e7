package model

import (
	"time"
)

// Device 穿戴设备
type Device struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SerialNo  string    `json:"serialNo" gorm:"type:varchar(64);uniqueIndex;not null"`
	TenantID  uint64    `json:"tenantId" gorm:"index;not null"`
	OrgID     uint64    `json:"orgId" gorm:"index;not null"`  // 归属部门
	UserID    uint64    `json:"userId" gorm:"index;default:0"` // 绑定的佩戴者（0表示未绑定）
	Status    int       `json:"status" gorm:"default:1;index"` // 1在用 0停用
	IsDeleted int       `json:"isDeleted" gorm:"default:0;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Device) TableName() string {
	return "devices"
}
