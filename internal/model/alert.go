package model

import (
	"time"
)

// 告警状态
const (
	AlertStatusActive = "active" // 未关闭
	AlertStatusClosed = "closed" // 已关闭
)

// Alert 健康/设备告警
// 告警的产生与关闭由告警管线负责，这里只做"某用户当前活跃告警"类查询
type Alert struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID  uint64    `json:"tenantId" gorm:"index:idx_alert_tenant_user;not null"`
	UserID    uint64    `json:"userId" gorm:"index:idx_alert_tenant_user;not null"`
	OrgID     uint64    `json:"orgId" gorm:"index;not null"`
	AlertType string    `json:"alertType" gorm:"type:varchar(50);not null"` // heart_rate_high, blood_oxygen_low, device_offline...
	Level     int       `json:"level" gorm:"default:1"`                     // 1提示 2警告 3严重
	Status    string    `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Message   string    `json:"message" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}
