package model

import (
	"time"
)

// 结构变更操作名
const (
	MutationInsert = "insert"
	MutationBatch  = "batch_insert"
	MutationDelete = "delete"
	MutationMove   = "move"
	MutationRepair = "repair"
)

// OrgMutationLog 结构变更审计日志
// 写入是尽力而为的：审计失败只记日志，绝不影响主操作的结果
type OrgMutationLog struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID      uint64    `json:"tenantId" gorm:"index;not null"`
	Operation     string    `json:"operation" gorm:"type:varchar(20);not null"`
	NodeID        uint64    `json:"nodeId" gorm:"index"`
	AffectedCount int64     `json:"affectedCount"`
	DurationMs    int64     `json:"durationMs"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"errorMessage" gorm:"type:varchar(500)"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (OrgMutationLog) TableName() string {
	return "org_mutation_logs"
}
