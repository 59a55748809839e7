package model

// ClosureEdge 组织闭包边：租户内每一对可达的 (祖先, 后代)，含自环（depth=0）
// 闭包表让"所有后代/所有祖先"退化为一次等值查询，不需要递归JOIN
type ClosureEdge struct {
	ID           uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	AncestorID   uint64 `json:"ancestorId" gorm:"uniqueIndex:uk_closure,priority:2;not null"`
	DescendantID uint64 `json:"descendantId" gorm:"uniqueIndex:uk_closure,priority:3;index:idx_closure_desc;not null"`
	Depth        int    `json:"depth" gorm:"not null"` // 0为自环，否则为路径边数
	TenantID     uint64 `json:"tenantId" gorm:"uniqueIndex:uk_closure,priority:1;index:idx_closure_desc;not null"`
}

func (ClosureEdge) TableName() string {
	return "org_closure"
}

// OrgNodeWithDepth 带距离的组织节点（后代/祖先查询结果）
type OrgNodeWithDepth struct {
	OrgNode
	Depth int `json:"depth"`
}

// ConsistencyReport 闭包表一致性检查报告
// 只读检查，不修改任何数据，可与任意操作并发执行
type ConsistencyReport struct {
	TenantID uint64 `json:"tenantId"`

	// 违例明细（每项为违例节点/边的ID列表）
	MissingSelfEdges   []uint64       `json:"missingSelfEdges"`   // 缺少自环的节点
	MissingParentEdges []uint64       `json:"missingParentEdges"` // 缺少 depth=1 父边的节点
	OrphanEdges        []uint64       `json:"orphanEdges"`        // 引用了已删除节点的边
	WrongDepthEdges    []WrongDepth   `json:"wrongDepthEdges"`    // depth 与 level 差不一致的边

	// 聚合统计
	NodeCount int64 `json:"nodeCount"`
	EdgeCount int64 `json:"edgeCount"`
	MaxDepth  int   `json:"maxDepth"`
}

// WrongDepth depth与层级差不符的边
type WrongDepth struct {
	AncestorID   uint64 `json:"ancestorId"`
	DescendantID uint64 `json:"descendantId"`
	Depth        int    `json:"depth"`
	Expected     int    `json:"expected"`
}

// TotalViolations 违例总数
func (r *ConsistencyReport) TotalViolations() int {
	return len(r.MissingSelfEdges) + len(r.MissingParentEdges) + len(r.OrphanEdges) + len(r.WrongDepthEdges)
}

// RepairReport 闭包表修复报告
// 每个修复步骤独立执行，单步失败不阻塞其余步骤
type RepairReport struct {
	TenantID uint64 `json:"tenantId"`

	SelfEdgesInserted int64 `json:"selfEdgesInserted"` // 补插的自环数
	EdgesRebuilt      int64 `json:"edgesRebuilt"`      // 重建的 depth>0 边数
	OrphanEdgesPurged int64 `json:"orphanEdgesPurged"` // 清除的孤儿边数
	LevelsRecomputed  int64 `json:"levelsRecomputed"`  // 重算的节点层级数

	// 各步骤收集到的失败（不中断整体修复）
	Errors []string `json:"errors,omitempty"`
}

// TotalFixes 修复动作总数（幂等性验证：紧接着的第二次修复应为0）
func (r *RepairReport) TotalFixes() int64 {
	return r.SelfEdgesInserted + r.EdgesRebuilt + r.OrphanEdgesPurged + r.LevelsRecomputed
}
