package repository

import (
	"github.com/BrunoGao/release-sub004/internal/model"
)

// 闭包边的纯计算逻辑，与存储无关，便于单测验证不变量

// Edge 内存中的闭包边
type Edge struct {
	AncestorID   uint64
	DescendantID uint64
	Depth        int
}

// DeriveInsertEdges 计算新节点需要插入的全部闭包边
// parentChain 为父节点的祖先链（含父节点自环，depth 相对父节点）；
// 新边 = 自环 + 每条 (a, parent, d) 对应一条 (a, node, d+1)
func DeriveInsertEdges(parentChain []Edge, nodeID uint64) []Edge {
	edges := make([]Edge, 0, len(parentChain)+1)
	edges = append(edges, Edge{AncestorID: nodeID, DescendantID: nodeID, Depth: 0})
	for _, e := range parentChain {
		edges = append(edges, Edge{
			AncestorID:   e.AncestorID,
			DescendantID: nodeID,
			Depth:        e.Depth + 1,
		})
	}
	return edges
}

// DeriveMoveEdges 计算子树移動后需要新建的跨界闭包边
// newParentChain 为新父节点的祖先链（含自环），subtreeOffsets 为
// 子树内每个成员相对子树根的深度（含根自身 offset=0）。
// 新边 = 每个 (祖先a, 距新父da) × 每个 (成员m, 偏移k) → (a, m, da+1+k)。
// 子树内部的边不在此列，移动时也不应删除它们
func DeriveMoveEdges(newParentChain []Edge, subtreeOffsets map[uint64]int) []Edge {
	edges := make([]Edge, 0, len(newParentChain)*len(subtreeOffsets))
	for _, a := range newParentChain {
		for member, offset := range subtreeOffsets {
			edges = append(edges, Edge{
				AncestorID:   a.AncestorID,
				DescendantID: member,
				Depth:        a.Depth + 1 + offset,
			})
		}
	}
	return edges
}

// ValidateMoveTarget 校验移动目标的合法性（纯内存判定）
// subtreeOffsets 为待移动子树的成员集合（含根自身）：
// 目标等于根为自移动；目标落在子树内则移动会在闭包中制造环
func ValidateMoveTarget(subtreeOffsets map[uint64]int, nodeID, newParentID uint64) error {
	if newParentID == nodeID {
		return ErrSelfMove
	}
	if _, inSubtree := subtreeOffsets[newParentID]; inSubtree {
		return ErrCycleDetected
	}
	return nil
}

// BuildClosure 由父指针全量推导闭包（含自环）
// 用于一致性修复的 delete-then-recompute 重建；nodes 只应包含未删除节点。
// 指向不存在父节点的链在该断点截止（孤链成为新的根）
func BuildClosure(nodes []model.OrgNode) []Edge {
	parent := make(map[uint64]uint64, len(nodes))
	exists := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		parent[n.ID] = n.ParentID
		exists[n.ID] = true
	}

	var edges []Edge
	for _, n := range nodes {
		// 自环
		edges = append(edges, Edge{AncestorID: n.ID, DescendantID: n.ID, Depth: 0})

		// 沿父链上溯；visited 防御数据中已存在的环
		visited := map[uint64]bool{n.ID: true}
		depth := 0
		cur := parent[n.ID]
		for cur != 0 && exists[cur] && !visited[cur] {
			depth++
			edges = append(edges, Edge{AncestorID: cur, DescendantID: n.ID, Depth: depth})
			visited[cur] = true
			cur = parent[cur]
		}
	}
	return edges
}

// ComputeLevels 由父指针推导每个节点的层级（根为0）
// 与 BuildClosure 同源：level(n) = n 到其根的父链长度
func ComputeLevels(nodes []model.OrgNode) map[uint64]int {
	parent := make(map[uint64]uint64, len(nodes))
	exists := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		parent[n.ID] = n.ParentID
		exists[n.ID] = true
	}

	levels := make(map[uint64]int, len(nodes))
	for _, n := range nodes {
		visited := map[uint64]bool{n.ID: true}
		depth := 0
		cur := parent[n.ID]
		for cur != 0 && exists[cur] && !visited[cur] {
			depth++
			visited[cur] = true
			cur = parent[cur]
		}
		levels[n.ID] = depth
	}
	return levels
}

// DiffEdges 求 expected 相对 actual 的差集：缺少的边与多余的边
// depth 不一致的边同时出现在两侧（删旧插新）
func DiffEdges(expected, actual []Edge) (missing, stray []Edge) {
	type key struct {
		a, d uint64
	}
	want := make(map[key]int, len(expected))
	for _, e := range expected {
		want[key{e.AncestorID, e.DescendantID}] = e.Depth
	}
	have := make(map[key]int, len(actual))
	for _, e := range actual {
		have[key{e.AncestorID, e.DescendantID}] = e.Depth
	}

	for _, e := range expected {
		if d, ok := have[key{e.AncestorID, e.DescendantID}]; !ok || d != e.Depth {
			missing = append(missing, e)
		}
	}
	for _, e := range actual {
		if d, ok := want[key{e.AncestorID, e.DescendantID}]; !ok || d != e.Depth {
			stray = append(stray, e)
		}
	}
	return missing, stray
}
