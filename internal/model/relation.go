package model

// UserRelations 用户完整关系快照（组合查询结果）
// 子查询并发执行，单项失败只记日志并保留零值，不影响其余字段
type UserRelations struct {
	UserID       uint64               `json:"userId"`
	TenantID     uint64               `json:"tenantId"`
	OrgIDs       []uint64             `json:"orgIds"`
	DeviceIDs    []uint64             `json:"deviceIds"`
	LatestHealth *LatestHealthReading `json:"latestHealth,omitempty"`
	ActiveAlerts []Alert              `json:"activeAlerts"`
}

// OrgRelations 部门完整关系快照（组合查询结果）
type OrgRelations struct {
	OrgID         uint64            `json:"orgId"`
	TenantID      uint64            `json:"tenantId"`
	UserIDs       []uint64          `json:"userIds"`       // 含子部门
	DeviceIDs     []uint64          `json:"deviceIds"`     // 含子部门
	DescendantIDs []uint64          `json:"descendantIds"` // 所有后代部门
	HealthSummary *OrgHealthSummary `json:"healthSummary,omitempty"`
}
