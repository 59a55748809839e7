package audit

import (
	"context"
	"time"

	"github.com/BrunoGao/release-sub004/internal/model"
	"github.com/BrunoGao/release-sub004/pkg/logger"
	"gorm.io/gorm"
)

// DatabaseAuditor 数据库审计器：结构变更写入 org_mutation_logs 表
type DatabaseAuditor struct {
	db *gorm.DB
}

// NewDatabaseAuditor 创建数据库审计器
func NewDatabaseAuditor(db *gorm.DB) Auditor {
	return &DatabaseAuditor{db: db}
}

// RecordMutation 记录一次结构变更
// 异步写入，失败只记日志——审计绝不拖慢或拖垮主操作
func (a *DatabaseAuditor) RecordMutation(ctx context.Context, record *MutationRecord) {
	row := &model.OrgMutationLog{
		TenantID:      record.TenantID,
		Operation:     record.Operation,
		NodeID:        record.NodeID,
		AffectedCount: record.AffectedCount,
		DurationMs:    record.DurationMs,
		Success:       record.Success,
		ErrorMessage:  record.ErrorMessage,
	}

	go func() {
		// 不复用请求ctx：请求返回后审计写入仍要完成
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.db.WithContext(writeCtx).Create(row).Error; err != nil {
			logger.Warnf("[Audit] Failed to record %s mutation for tenant %d: %v",
				record.Operation, record.TenantID, err)
		}
	}()
}
