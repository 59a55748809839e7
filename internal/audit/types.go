package audit

import (
	"context"
)

// MutationRecord 一次结构变更的审计信息
type MutationRecord struct {
	TenantID      uint64 // 租户
	Operation     string // insert / batch_insert / delete / move / repair
	NodeID        uint64 // 目标节点（批量操作为首节点）
	AffectedCount int64  // 受影响的节点数
	DurationMs    int64  // 耗时（毫秒）
	Success       bool   // 是否成功
	ErrorMessage  string // 失败原因（成功时为空）
}

// Auditor 结构变更审计器
// 审计是尽力而为的旁路：实现方必须吞掉自身错误，
// 任何审计失败都不允许影响主操作的结果
type Auditor interface {
	// RecordMutation 记录一次结构变更
	RecordMutation(ctx context.Context, record *MutationRecord)
}
