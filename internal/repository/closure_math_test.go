package repository

import (
	"sort"
	"testing"

	"github.com/BrunoGao/release-sub004/internal/model"
)

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].AncestorID != edges[j].AncestorID {
			return edges[i].AncestorID < edges[j].AncestorID
		}
		return edges[i].DescendantID < edges[j].DescendantID
	})
}

func edgesEqual(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	sortEdges(a)
	sortEdges(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestDeriveInsertEdges 测试插入节点的闭包边推导
func TestDeriveInsertEdges(t *testing.T) {
	tests := []struct {
		name        string
		parentChain []Edge
		nodeID      uint64
		expected    []Edge
	}{
		{
			name:        "租户根节点只有自环",
			parentChain: nil,
			nodeID:      1,
			expected: []Edge{
				{AncestorID: 1, DescendantID: 1, Depth: 0},
			},
		},
		{
			name: "一级子节点",
			parentChain: []Edge{
				{AncestorID: 1, DescendantID: 1, Depth: 0},
			},
			nodeID: 2,
			expected: []Edge{
				{AncestorID: 2, DescendantID: 2, Depth: 0},
				{AncestorID: 1, DescendantID: 2, Depth: 1},
			},
		},
		{
			name: "三级子节点继承整条祖先链",
			parentChain: []Edge{
				{AncestorID: 3, DescendantID: 3, Depth: 0},
				{AncestorID: 2, DescendantID: 3, Depth: 1},
				{AncestorID: 1, DescendantID: 3, Depth: 2},
			},
			nodeID: 4,
			expected: []Edge{
				{AncestorID: 4, DescendantID: 4, Depth: 0},
				{AncestorID: 3, DescendantID: 4, Depth: 1},
				{AncestorID: 2, DescendantID: 4, Depth: 2},
				{AncestorID: 1, DescendantID: 4, Depth: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveInsertEdges(tt.parentChain, tt.nodeID)
			if !edgesEqual(got, tt.expected) {
				t.Errorf("DeriveInsertEdges() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

// TestDeriveMoveEdges 测试子树移动的跨界闭包边推导
func TestDeriveMoveEdges(t *testing.T) {
	// R(1) → A(2) → B(3)，A 带 B 整体移到新根 R2(4) 下
	newParentChain := []Edge{
		{AncestorID: 4, DescendantID: 4, Depth: 0},
	}
	subtreeOffsets := map[uint64]int{
		2: 0, // A 是子树根
		3: 1, // B 在 A 下一层
	}

	got := DeriveMoveEdges(newParentChain, subtreeOffsets)
	expected := []Edge{
		{AncestorID: 4, DescendantID: 2, Depth: 1},
		{AncestorID: 4, DescendantID: 3, Depth: 2},
	}
	if !edgesEqual(got, expected) {
		t.Errorf("DeriveMoveEdges() = %v, expected %v", got, expected)
	}
}

// TestMovePreservesAncestorDepths 移动后 B 的祖先链为 [A, R2] 且深度为 [1, 2]
func TestMovePreservesAncestorDepths(t *testing.T) {
	// 初始树：R(1) → A(2) → B(3)，另有新根 R2(4)
	nodes := []model.OrgNode{
		{ID: 1, ParentID: 0},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 2},
		{ID: 4, ParentID: 0},
	}
	closure := BuildClosure(nodes)

	// 移动前 B 的祖先为 [A depth1, R depth2]
	ancestorsOf := func(edges []Edge, nodeID uint64) map[uint64]int {
		result := make(map[uint64]int)
		for _, e := range edges {
			if e.DescendantID == nodeID && e.Depth > 0 {
				result[e.AncestorID] = e.Depth
			}
		}
		return result
	}
	before := ancestorsOf(closure, 3)
	if before[2] != 1 || before[1] != 2 {
		t.Fatalf("ancestors of B before move = %v, expected A@1 R@2", before)
	}

	// 模拟移动：删除跨界边（descendant 在子树内且 ancestor 在子树外），
	// 保留子树内部边，插入 DeriveMoveEdges 的新边
	subtree := map[uint64]bool{2: true, 3: true}
	var kept []Edge
	for _, e := range closure {
		if subtree[e.DescendantID] && !subtree[e.AncestorID] {
			continue
		}
		kept = append(kept, e)
	}
	newEdges := DeriveMoveEdges(
		[]Edge{{AncestorID: 4, DescendantID: 4, Depth: 0}},
		map[uint64]int{2: 0, 3: 1},
	)
	moved := append(kept, newEdges...)

	after := ancestorsOf(moved, 3)
	if len(after) != 2 || after[2] != 1 || after[4] != 2 {
		t.Errorf("ancestors of B after move = %v, expected A@1 R2@2", after)
	}
	if _, stillThere := after[1]; stillThere {
		t.Errorf("old root R should no longer be an ancestor of B")
	}

	// 与按新父指针全量重建的闭包一致
	nodes[1].ParentID = 4
	rebuilt := BuildClosure(nodes)
	missing, stray := DiffEdges(rebuilt, moved)
	if len(missing) != 0 || len(stray) != 0 {
		t.Errorf("moved closure diverges from rebuilt closure: missing=%v stray=%v", missing, stray)
	}
}

// TestValidateMoveTarget 测试移动目标校验（自移动与防环）
func TestValidateMoveTarget(t *testing.T) {
	// R(1) → A(2) → B(3)，待移动子树为 A 带 B
	offsets := map[uint64]int{2: 0, 3: 1}

	tests := []struct {
		name        string
		nodeID      uint64
		newParentID uint64
		expected    error
	}{
		{"移到自己下面", 2, 2, ErrSelfMove},
		{"移到直接子节点下面成环", 2, 3, ErrCycleDetected},
		{"移到子树外的节点合法", 2, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateMoveTarget(offsets, tt.nodeID, tt.newParentID)
			if got != tt.expected {
				t.Errorf("ValidateMoveTarget(%d → %d) = %v, expected %v",
					tt.nodeID, tt.newParentID, got, tt.expected)
			}
		})
	}

	t.Run("深层后代同样被拒绝", func(t *testing.T) {
		// root(1) → a(2) → b(3) → c(4)，把 a 移到曾孙 c 下
		deep := map[uint64]int{2: 0, 3: 1, 4: 2}
		if got := ValidateMoveTarget(deep, 2, 4); got != ErrCycleDetected {
			t.Errorf("moving under a deep descendant = %v, expected ErrCycleDetected", got)
		}
	})
}

// TestDeleteCascadeEdgeSet 删除子树后，受影响集合的全部闭包边都应消失
func TestDeleteCascadeEdgeSet(t *testing.T) {
	// root(1) → a(2) → b(3) → c(4)，软删除 a
	nodes := []model.OrgNode{
		{ID: 1, ParentID: 0},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 2},
		{ID: 4, ParentID: 3},
	}
	closure := BuildClosure(nodes)

	// 受影响集合 = a 的闭包后代（含自身）
	affected := map[uint64]bool{}
	for _, e := range closure {
		if e.AncestorID == 2 {
			affected[e.DescendantID] = true
		}
	}
	if len(affected) != 3 || !affected[2] || !affected[3] || !affected[4] {
		t.Fatalf("affected set = %v, expected {a,b,c}", affected)
	}

	// 删除语义：祖先或后代落在受影响集合内的边全部移除
	var remaining []Edge
	removed := 0
	for _, e := range closure {
		if affected[e.AncestorID] || affected[e.DescendantID] {
			removed++
			continue
		}
		remaining = append(remaining, e)
	}

	// 四级链闭包共10条边，仅 root 自环与集合无关
	if removed != 9 {
		t.Errorf("removed %d edges, expected 9", removed)
	}
	expected := []Edge{{AncestorID: 1, DescendantID: 1, Depth: 0}}
	if !edgesEqual(remaining, expected) {
		t.Errorf("remaining edges = %v, expected only the root self edge", remaining)
	}

	// 与仅保留 root 的全量重建结果一致
	rebuilt := BuildClosure(nodes[:1])
	missing, stray := DiffEdges(rebuilt, remaining)
	if len(missing) != 0 || len(stray) != 0 {
		t.Errorf("post-delete closure diverges from rebuilt: missing=%v stray=%v", missing, stray)
	}
}

// TestBuildClosure 测试闭包全量推导
func TestBuildClosure(t *testing.T) {
	t.Run("四级链的后代深度", func(t *testing.T) {
		// root(1) → a(2) → b(3) → c(4)
		nodes := []model.OrgNode{
			{ID: 1, ParentID: 0},
			{ID: 2, ParentID: 1},
			{ID: 3, ParentID: 2},
			{ID: 4, ParentID: 3},
		}
		closure := BuildClosure(nodes)

		descendants := make(map[uint64]int)
		for _, e := range closure {
			if e.AncestorID == 1 && e.Depth > 0 {
				descendants[e.DescendantID] = e.Depth
			}
		}
		expected := map[uint64]int{2: 1, 3: 2, 4: 3}
		if len(descendants) != len(expected) {
			t.Fatalf("descendants of root = %v, expected %v", descendants, expected)
		}
		for id, depth := range expected {
			if descendants[id] != depth {
				t.Errorf("depth of node %d = %d, expected %d", id, descendants[id], depth)
			}
		}

		// 边总数 = 自环4 + (1右侧3条 + 2右侧2条 + 3右侧1条)
		if len(closure) != 10 {
			t.Errorf("closure has %d edges, expected 10", len(closure))
		}
	})

	t.Run("指向不存在父节点的孤链截止为根", func(t *testing.T) {
		nodes := []model.OrgNode{
			{ID: 5, ParentID: 99}, // 父节点不存在
			{ID: 6, ParentID: 5},
		}
		closure := BuildClosure(nodes)
		expected := []Edge{
			{AncestorID: 5, DescendantID: 5, Depth: 0},
			{AncestorID: 6, DescendantID: 6, Depth: 0},
			{AncestorID: 5, DescendantID: 6, Depth: 1},
		}
		if !edgesEqual(closure, expected) {
			t.Errorf("BuildClosure() = %v, expected %v", closure, expected)
		}
	})

	t.Run("父指针成环时不会死循环", func(t *testing.T) {
		nodes := []model.OrgNode{
			{ID: 1, ParentID: 2},
			{ID: 2, ParentID: 1},
		}
		closure := BuildClosure(nodes)
		// 每个节点：自环 + 对方一条
		if len(closure) != 4 {
			t.Errorf("closure has %d edges, expected 4", len(closure))
		}
	})
}

// TestComputeLevels 测试层级推导
func TestComputeLevels(t *testing.T) {
	nodes := []model.OrgNode{
		{ID: 1, ParentID: 0},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 2},
		{ID: 4, ParentID: 0},
	}
	levels := ComputeLevels(nodes)
	expected := map[uint64]int{1: 0, 2: 1, 3: 2, 4: 0}
	for id, level := range expected {
		if levels[id] != level {
			t.Errorf("level of node %d = %d, expected %d", id, levels[id], level)
		}
	}
}

// TestDiffEdges 测试闭包差集
func TestDiffEdges(t *testing.T) {
	base := []Edge{
		{AncestorID: 1, DescendantID: 1, Depth: 0},
		{AncestorID: 1, DescendantID: 2, Depth: 1},
	}

	t.Run("相同集合差集为空", func(t *testing.T) {
		missing, stray := DiffEdges(base, base)
		if len(missing) != 0 || len(stray) != 0 {
			t.Errorf("DiffEdges(x, x) = missing %v, stray %v, expected empty", missing, stray)
		}
	})

	t.Run("缺边与多余边", func(t *testing.T) {
		actual := []Edge{
			{AncestorID: 1, DescendantID: 1, Depth: 0},
			{AncestorID: 9, DescendantID: 2, Depth: 1}, // 多余
		}
		missing, stray := DiffEdges(base, actual)
		if len(missing) != 1 || missing[0].DescendantID != 2 || missing[0].AncestorID != 1 {
			t.Errorf("missing = %v, expected [(1,2,1)]", missing)
		}
		if len(stray) != 1 || stray[0].AncestorID != 9 {
			t.Errorf("stray = %v, expected [(9,2,1)]", stray)
		}
	})

	t.Run("深度不一致的边同时出现在两侧", func(t *testing.T) {
		actual := []Edge{
			{AncestorID: 1, DescendantID: 1, Depth: 0},
			{AncestorID: 1, DescendantID: 2, Depth: 3}, // 深度错误
		}
		missing, stray := DiffEdges(base, actual)
		if len(missing) != 1 || missing[0].Depth != 1 {
			t.Errorf("missing = %v, expected the depth-1 edge", missing)
		}
		if len(stray) != 1 || stray[0].Depth != 3 {
			t.Errorf("stray = %v, expected the depth-3 edge", stray)
		}
	})
}

// TestRepairIdempotence 重建一次后再次对比不再有差异
func TestRepairIdempotence(t *testing.T) {
	nodes := []model.OrgNode{
		{ID: 1, ParentID: 0},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 1},
		{ID: 4, ParentID: 3},
	}
	// 模拟坏掉的存量闭包：丢一条边、深度错一条
	broken := BuildClosure(nodes)
	broken = broken[:len(broken)-1]
	broken[1].Depth += 1

	expected := BuildClosure(nodes)
	missing, stray := DiffEdges(expected, broken)
	if len(missing) == 0 {
		t.Fatal("expected the broken closure to have missing edges")
	}

	// 应用修复：去掉多余边，补上缺失边
	strayKey := make(map[Edge]bool, len(stray))
	for _, e := range stray {
		strayKey[e] = true
	}
	var repaired []Edge
	for _, e := range broken {
		if !strayKey[e] {
			repaired = append(repaired, e)
		}
	}
	repaired = append(repaired, missing...)

	// 第二轮不再有任何修复
	missing2, stray2 := DiffEdges(expected, repaired)
	if len(missing2) != 0 || len(stray2) != 0 {
		t.Errorf("second repair pass found fixes: missing=%v stray=%v", missing2, stray2)
	}
}
