package model

import (
	"time"
)

// HealthData 设备上报的健康数据
// 写入由采集管道负责（本服务不消费上报流），这里只做"最新一条"类查询
type HealthData struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID    uint64    `json:"tenantId" gorm:"index:idx_health_tenant_user;not null"`
	UserID      uint64    `json:"userId" gorm:"index:idx_health_tenant_user;not null"`
	DeviceSN    string    `json:"deviceSn" gorm:"type:varchar(64);index"`
	HeartRate   int       `json:"heartRate"`
	BloodOxygen int       `json:"bloodOxygen"`
	Temperature float64   `json:"temperature"`
	Step        int       `json:"step"`
	Timestamp   time.Time `json:"timestamp" gorm:"index;not null"` // 采集时间
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (HealthData) TableName() string {
	return "health_data"
}

// LatestHealthReading 单用户最新健康读数（缓存聚合值）
type LatestHealthReading struct {
	UserID      uint64    `json:"userId"`
	DeviceSN    string    `json:"deviceSn"`
	HeartRate   int       `json:"heartRate"`
	BloodOxygen int       `json:"bloodOxygen"`
	Temperature float64   `json:"temperature"`
	Step        int       `json:"step"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrgHealthSummary 部门健康汇总（含子部门，缓存聚合值）
type OrgHealthSummary struct {
	OrgID          uint64  `json:"orgId"`
	UserCount      int64   `json:"userCount"`      // 部门及子部门人数
	ReportedCount  int64   `json:"reportedCount"`  // 当日有上报的人数
	AvgHeartRate   float64 `json:"avgHeartRate"`   // 平均心率
	AvgBloodOxygen float64 `json:"avgBloodOxygen"` // 平均血氧
	ActiveAlerts   int64   `json:"activeAlerts"`   // 未关闭告警数
}
